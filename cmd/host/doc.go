// Package main is the entry point for the qiankun host server.
//
// The host serves a shell page and orchestrates micro-frontend
// applications inside it: registration, loading, sandboxed script
// execution, mounting into page containers, and teardown.
//
// The server provides:
//   - REST API for application registration and lifecycle control
//   - Host page rendering with mounted applications inlined
//   - WebSocket streaming of shared global state
//   - Prometheus metrics and aggregate stats
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional TOML file via -config (file values win)
//   - CLI flags for the common overrides
//
// Usage:
//
//	# Production mode
//	./host -port 8000
//
//	# Development mode (colored logs, debug level)
//	./host -dev
//
//	# With a config file
//	./host -config host.toml
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown, mounted applications are
//     unmounted before exit
package main
