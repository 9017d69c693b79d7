// Package server assembles the micro-frontend host.
//
// This package orchestrates all components:
//   - Host document (configured HTML file or built-in skeleton)
//   - Lifecycle engine with its sandbox factory and content loader
//   - Application registry, seeded from manifest files
//   - HTTP routing with Gin, middleware stack (recovery, tracing, CORS,
//     rate limiting, metrics)
//   - WebSocket streaming of the global state bus
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Parse the host page and build the engine on it
//  4. Seed the registry from the manifest directory
//  5. Setup HTTP routes and middleware
//  6. Serve until shutdown
//  7. On shutdown, unmount every mounted application
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg, log)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
