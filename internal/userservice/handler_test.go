package userservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracechain-io/tracechain/internal/infrastructure/config"
	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry"
	"github.com/tracechain-io/tracechain/internal/infrastructure/telemetry/telemetrytest"
	"github.com/tracechain-io/tracechain/internal/shared/types"
)

func newTestService(t *testing.T) (*gin.Engine, *telemetry.Telemetry, *telemetrytest.Recorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tel, rec := telemetrytest.NewPipeline("user-service")
	t.Cleanup(func() { _ = tel.Close(context.Background()) })

	srv := NewServer(config.Default("8001"), tel)
	return srv.Router(), tel, rec
}

func flush(t *testing.T, tel *telemetry.Telemetry) {
	t.Helper()
	require.NoError(t, tel.ForceFlush(context.Background()))
}

func TestHealthReportsStoreAndRequestAggregates(t *testing.T) {
	router, _, _ := newTestService(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal/user/123", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status   string `json:"status"`
		Users    int    `json:"users"`
		Requests int64  `json:"requests"`
		Errors   int64  `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Users)
	assert.Equal(t, int64(1), body.Requests)
	assert.Equal(t, int64(0), body.Errors)
}

func TestGetUserFound(t *testing.T) {
	router, tel, rec := newTestService(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/internal/user/123", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var user types.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	assert.Equal(t, "123", user.ID)
	assert.Equal(t, "otelfan", user.Username)
	assert.Equal(t, "otel@example.com", user.Email)

	flush(t, tel)

	lookup, ok := rec.SpanByName("find_user_in_db")
	require.True(t, ok)
	assert.Equal(t, telemetry.StatusOk, lookup.Status)

	attrs := lookup.Attributes()
	assert.Equal(t, "123", attrs["user.id"])
	assert.Equal(t, true, attrs["user.found"])
	assert.Equal(t, "otelfan", attrs["user.username"])

	// The lookup span nests under the middleware's server span.
	server, ok := rec.SpanByName("/internal/user/:id")
	require.True(t, ok)
	assert.Equal(t, server.Context.TraceID, lookup.Context.TraceID)
	assert.Equal(t, server.Context.SpanID, lookup.Context.ParentID)
}

func TestGetUserNotFound(t *testing.T) {
	router, tel, rec := newTestService(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/internal/user/999", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found","status":404}`, w.Body.String())

	flush(t, tel)

	lookup, ok := rec.SpanByName("find_user_in_db")
	require.True(t, ok)
	assert.Equal(t, telemetry.StatusError, lookup.Status)

	attrs := lookup.Attributes()
	assert.Equal(t, false, attrs["user.found"])
	assert.Equal(t, true, attrs["error"])
	_, hasUsername := attrs["user.username"]
	assert.False(t, hasUsername)
}

func TestJoinsCallerTrace(t *testing.T) {
	router, tel, rec := newTestService(t)

	remote := telemetry.NewRootContext()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/internal/user/123", nil)
	req.Header.Set("traceparent", fmt.Sprintf("00-%s-%s-01", remote.TraceID, remote.SpanID))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	flush(t, tel)

	server, ok := rec.SpanByName("/internal/user/:id")
	require.True(t, ok)
	assert.Equal(t, remote.TraceID, server.Context.TraceID)
	assert.Equal(t, remote.SpanID, server.Context.ParentID)

	lookup, ok := rec.SpanByName("find_user_in_db")
	require.True(t, ok)
	assert.Equal(t, remote.TraceID, lookup.Context.TraceID)
}

func TestLookupCounterIncrements(t *testing.T) {
	router, tel, rec := newTestService(t)

	for _, id := range []string{"123", "123", "999"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/internal/user/"+id, nil)
		router.ServeHTTP(w, req)
	}

	flush(t, tel)

	var snap *telemetry.CounterSnapshot
	for _, m := range rec.Metrics() {
		if m.Name == "user_lookups" {
			m := m
			snap = &m
		}
	}
	require.NotNil(t, snap, "user_lookups counter should export")

	byID := make(map[string]int64)
	for _, p := range snap.Points {
		for _, a := range p.Attrs {
			if a.Key == "user.id" {
				byID[a.Value] = p.Value
			}
		}
	}
	assert.Equal(t, int64(2), byID["123"])
	assert.Equal(t, int64(1), byID["999"])
}

func TestSpansEndExactlyOncePerRequest(t *testing.T) {
	router, tel, rec := newTestService(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/internal/user/123", nil)
	router.ServeHTTP(w, req)

	flush(t, tel)

	// One server span and one lookup span, nothing more.
	assert.Len(t, rec.Spans(), 2)
}
