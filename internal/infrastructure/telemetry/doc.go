/*
Package telemetry implements the correlation pipeline shared by the
gateway and the user service: distributed traces, request counters, and
structured logs, all stamped with the same trace/span identifiers and
batched out to an OTLP collector.

# Overview

Every inbound request yields one causally linked observability record
even though the request crosses a process boundary. The pipeline has
five parts:

  - SpanContext: the immutable identifier bundle (trace id, span id,
    parent span id, sampled flag) propagated via the W3C traceparent
    header
  - Tracer/Span: scoped span lifecycle with attributes and status
  - Meter/Counter: monotonically increasing counters with attribute
    tags, snapshotted on each flush tick
  - BatchProcessor: buffered, timer- and size-driven export, fully
    decoupled from the request path
  - OTLPExporter: gRPC delivery to the collector (the one external
    collaborator; tests use a recording fake)

# Usage

	tel, err := telemetry.New(telemetry.Config{
		ServiceName:       "gateway",
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Logger:            logger.Logger,
	})
	if err != nil {
		return err
	}
	defer tel.Close(ctx)

	// HTTP middleware opens a server span per request
	router.Use(telemetry.Middleware(tel.Tracer))

	// Manual child spans inside handlers
	span, ctx := tel.Tracer.Start(ctx, "get_user_handler")
	defer span.End()

	span.SetAttribute("user.id", userID)
	span.SetStatus(telemetry.StatusOk, "")

	// Counters
	requests := tel.Meter.Counter("gateway.requests", "{request}", "Inbound user lookups")
	requests.Add(1, telemetry.String("user.id", userID))

# Correlation guarantees

A span is started and ended exactly once per unit of work on every
outcome path; ending twice is a logged no-op. Spans created on the far
side of an outbound call share the caller's trace id, with the caller's
span id as parent. Export failures are logged and dropped after one
retry; they never block or fail a request.

# Propagation format

Outbound calls carry the standard traceparent header:

	00-{trace-id:32 hex}-{parent-span-id:16 hex}-{flags:2 hex}

Malformed or missing inbound headers degrade to a new trace root;
extraction never fails a request.
*/
package telemetry
