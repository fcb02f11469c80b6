// Package main is the entry point for the user service.
//
// The user service is the backing half of the call chain: it serves
// GET /internal/user/:id from a seeded in-memory store. Inbound
// requests that carry a traceparent header join the caller's trace, so
// the lookup spans nest under the gateway's handler span in the
// exported record.
//
// Configuration:
//   - Environment variables (12-factor)
//   - Defaults for local development
//
// Usage:
//
//	PORT=8001 OTEL_EXPORTER_OTLP_ENDPOINT=localhost:4317 ./userservice
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown (drains requests, flushes telemetry)
package main
