package request

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = requestcontext.RequestID(r.Context())
	}))

	serve := func(header string) string {
		req := httptest.NewRequest(http.MethodGet, "/events", nil)
		if header != "" {
			req.Header.Set("X-Request-ID", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, captured, w.Header().Get("X-Request-ID"))
		return captured
	}

	assert.Len(t, serve(""), 36)
	assert.Equal(t, "trace.span_1234", serve("trace.span_1234"))
	assert.NotEqual(t, "bad\nid", serve("bad\nid"))
	assert.Len(t, serve(strings.Repeat("a", MaxRequestIDLength+1)), 36)
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLoggerCapturesStatus(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(slog.NewJSONHandler(&sb, nil))
	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/events", nil))
	assert.Contains(t, sb.String(), `"status":418`)

	sb.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, sb.String(), "probe paths are not logged unless they fail")
}

func TestClientLimiter(t *testing.T) {
	limiter := NewClientLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"), "buckets are per client")

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"), "tokens refill over time")

	now = now.Add(10 * time.Minute)
	limiter.Allow("10.0.0.3")
	limiter.mu.Lock()
	_, stale := limiter.buckets["10.0.0.2"]
	limiter.mu.Unlock()
	assert.False(t, stale, "idle buckets are evicted")
}

func TestRateLimitMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	handler := RateLimit(NewClientLimiter(1, 1), metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/events", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/events", nil))

	assert.Equal(t, http.StatusNoContent, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, float64(1), promtest.ToFloat64(metrics.RateLimited))
}
