/*
Package monitoring provides operational metrics collection.

# Overview

This package implements Prometheus-based metrics for the gateway and the
user service, tracking HTTP requests, downstream calls, and user store
lookups. It is the operational counterpart to the telemetry package: the
telemetry pipeline ships causally linked signals to the collector, while
this package serves scrape-style counters and histograms on /metrics.

Each Metrics instance owns a private registry keyed by service name, so
multiple services can coexist in one process.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics("gateway")

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time downstream operations
	timer := monitoring.NewTimer(metrics, "user-service", "get_user")
	// ... perform call ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the collector's own handler:

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
