// Package config provides 12-factor configuration management for the
// micro-frontend host.
//
// Configuration is loaded from environment variables with sensible defaults.
// A TOML file can be layered on top for deployments that prefer files over
// environment blocks.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Engine: Lifecycle engine defaults (singular mode, isolation)
//   - Loader: Remote entry fetching (timeouts, retries, sanitization)
//   - Registry: Manifest seeding directory
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - ENGINE_SINGULAR, ENGINE_STRICT_ISOLATION, ENGINE_ISOLATED_ROOT,
//     ENGINE_SCOPED_CSS
//   - LOADER_TIMEOUT, LOADER_RETRIES, LOADER_USER_AGENT, LOADER_SANITIZE,
//     LOADER_IGNORES (comma-separated glob patterns)
//   - REGISTRY_SEED_DIR
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
