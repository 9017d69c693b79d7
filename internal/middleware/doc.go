// Package middleware provides the HTTP middleware stack for the host server.
//
// Middleware stack includes:
//   - CORS: cross-origin resource sharing with configurable origins
//   - RateLimit: per-IP token bucket rate limiting with idle-client eviction
//   - GlobalRateLimit: one bucket shared by every client
//   - Trace: X-Trace-ID propagation and per-request outcome logging
//
// CORS Configuration:
//   - AllowOrigins: permitted origin domains
//   - AllowMethods: HTTP methods (GET, POST, etc.)
//   - AllowHeaders: request headers
//   - AllowCredentials: cookie/auth support
//   - MaxAge: preflight cache duration
//
// Rate Limiting:
//   - Token bucket algorithm (golang.org/x/time/rate)
//   - Configurable RPS and burst capacity
//   - Per-IP buckets dropped after an idle period
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
