// Package main is the entry point for the API gateway.
//
// The gateway is the public half of the call chain:
//
//	Client → API Gateway → User Service
//	             └── spans/metrics/logs → OTLP Collector
//
// Every inbound request produces a causally linked set of signals: a
// server span, a handler span, a request counter increment, and log
// lines sharing the same trace id. The outbound call to the user
// service carries the trace context in its traceparent header.
//
// Configuration:
//   - Environment variables (12-factor)
//   - Defaults for local development
//
// Usage:
//
//	PORT=8000 USER_SERVICE_URL=http://localhost:8001 \
//	OTEL_EXPORTER_OTLP_ENDPOINT=localhost:4317 ./gateway
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown (drains requests, flushes telemetry)
package main
