/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
micro-frontend host, tracking HTTP requests, lifecycle transitions,
sandbox activity, and system metrics.

# Features

- HTTP request metrics (latency, throughput, size)
- Lifecycle transition metrics (load, bootstrap, mount, unmount, update)
- Sandbox evaluation metrics per isolation mode
- Instance and registry gauges
- Global state bus metrics
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.SetInstancesActive(5)
	metrics.IncInstancesTotal()

	// Time operations
	timer := monitoring.NewTimer(metrics, "orders", "mount")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
