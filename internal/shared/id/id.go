// Package id provides centralized ID generation for the telemetry pipeline.
//
// Two identifier families live here:
//   - Trace identifiers: 128-bit trace IDs and 64-bit span IDs encoded as
//     lowercase hex, sized per the W3C Trace Context convention
//   - Request identifiers: prefixed ULIDs (req_*) for per-request log
//     correlation; lexicographically sortable and human-scannable in logs
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies one inbound API request in logs.
type RequestID string

// RequestPrefix marks request IDs in log output.
const RequestPrefix = "req"

const (
	traceIDBytes = 16
	spanIDBytes  = 8
)

// Generator produces trace, span, and request identifiers from a single
// entropy source. Safe for concurrent use.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator backed by crypto/rand.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// TraceID returns a new 32-character lowercase hex trace identifier.
// All-zero IDs are invalid on the wire, so generation retries until at
// least one nonzero byte is produced.
func (g *Generator) TraceID() string {
	return g.hexID(traceIDBytes)
}

// SpanID returns a new 16-character lowercase hex span identifier.
func (g *Generator) SpanID() string {
	return g.hexID(spanIDBytes)
}

func (g *Generator) hexID(n int) string {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	buf := make([]byte, n)
	for {
		if _, err := io.ReadFull(g.entropy, buf); err != nil {
			// crypto/rand never fails on supported platforms; a custom
			// entropy source that runs dry falls back to it.
			_, _ = io.ReadFull(rand.Reader, buf)
		}
		if !allZero(buf) {
			return hex.EncodeToString(buf)
		}
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// RequestID returns a new prefixed ULID request identifier.
func (g *Generator) RequestID() RequestID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	u := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return RequestID(fmt.Sprintf("%s_%s", RequestPrefix, u.String()))
}

// NewTraceID generates a trace ID using the default generator.
func NewTraceID() string {
	return Default().TraceID()
}

// NewSpanID generates a span ID using the default generator.
func NewSpanID() string {
	return Default().SpanID()
}

// NewRequestID generates a request ID using the default generator.
func NewRequestID() RequestID {
	return Default().RequestID()
}

// String returns the request ID as a plain string.
func (id RequestID) String() string { return string(id) }
