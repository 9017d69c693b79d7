// Package http provides the REST surface of the host server.
//
// This package implements all HTTP endpoints using the Gin framework:
// the rendered host page, health checks, application lifecycle control,
// shared state inspection, and activity stats.
//
// Endpoints:
//   - Host page: GET /
//   - Health: GET /health
//   - Apps: GET/POST /apps, GET/DELETE /apps/:name
//   - Lifecycle: POST /apps/:name/mount, /apps/:name/unmount, /apps/:name/update
//   - State: GET /state
//   - Stats: GET /stats
//
// Error mapping: unknown application names produce 404, configuration
// errors 400, everything else 500. Lifecycle state conflicts surface with
// the registry's message intact.
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, eng, metrics, log)
//	router.GET("/health", handlers.Health)
//	router.POST("/apps/:name/mount", handlers.MountApp)
package http
