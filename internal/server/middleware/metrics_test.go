package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlens/riftlens/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestRequestMetricsEmits(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		status  int
		body    string
		size    string
		emitted []string
		absent  []string
	}{
		{
			name:    "ok",
			method:  http.MethodGet,
			status:  http.StatusOK,
			body:    `{"sessions":[],"count":0}`,
			emitted: []string{"http_requests_total", "http_request_duration_ms", "http_response_size_bytes"},
			absent:  []string{"http_errors_total"},
		},
		{
			name:    "client error",
			method:  http.MethodGet,
			status:  http.StatusNotFound,
			emitted: []string{"http_requests_total", "http_errors_total"},
		},
		{
			name:    "server error",
			method:  http.MethodGet,
			status:  http.StatusServiceUnavailable,
			emitted: []string{"http_errors_total"},
		},
		{
			name:    "request size",
			method:  http.MethodPost,
			status:  http.StatusOK,
			size:    "1024",
			emitted: []string{"http_request_size_bytes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := setupTelemetry(t)
			h := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))

			req := httptest.NewRequest(tt.method, "/api/v1/sessions", nil)
			if tt.size != "" {
				req.Header.Set("Content-Length", tt.size)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			for _, name := range tt.emitted {
				assert.Greater(t, collector.CountMetricsByName(name), 0, name)
			}
			for _, name := range tt.absent {
				assert.Equal(t, 0, collector.CountMetricsByName(name), name)
			}
		})
	}
}

func TestRequestMetricsWithTelemetryDisabled(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	h := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRequestSize(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abc"))
	assert.Equal(t, int64(3), requestSize(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Content-Length", "nope")
	assert.Equal(t, int64(0), requestSize(req))
}

func TestGetEndpointPattern(t *testing.T) {
	tests := map[string]string{
		"/health":              "/health/*",
		"/health/ready":        "/health/*",
		"/version":             "/version",
		"/metrics":             "/metrics",
		"/ws":                  "/ws",
		"/api/v1/quota":        "/api/v1/quota",
		"/api/v1/sessions/123": "/api/v1/sessions/*",
		"/api/users/123":       "/unknown",
		"/":                    "/",
	}
	for path, want := range tests {
		assert.Equal(t, want, getEndpointPattern(httptest.NewRequest(http.MethodGet, path, nil)), path)
	}
}

func TestGetEndpointPatternPrefersChiRoute(t *testing.T) {
	var pattern string
	r := chi.NewRouter()
	r.Get("/api/v1/sessions/{matchID}", func(w http.ResponseWriter, req *http.Request) {
		pattern = getEndpointPattern(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sessions/42", nil))
	assert.Equal(t, "/api/v1/sessions/{matchID}", pattern)
}

func TestRequestMetricsWithRequestID(t *testing.T) {
	collector := setupTelemetry(t)
	h := RequestID(RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil)
	req.Header.Set(RequestIDHeader, "viewer-req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "viewer-req-1", rec.Header().Get(RequestIDHeader))
	assert.Greater(t, collector.CountMetricsByName("http_requests_total"), 0)
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestRequestMetricsPassesHijackThrough(t *testing.T) {
	collector := setupTelemetry(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hijacker, ok := w.(http.Hijacker)
		require.True(t, ok, "wrapped writer must implement http.Hijacker")
		_, _, err := hijacker.Hijack()
		require.NoError(t, err)
	})

	rec := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
	RequestMetrics(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))

	assert.True(t, rec.hijacked)
	assert.Greater(t, collector.CountMetricsByName(WebsocketDurationName), 0)
	assert.Equal(t, 0, collector.CountMetricsByName("http_requests_total"),
		"upgraded sockets are not counted as requests")
}

func TestResponseWriterHijackUnsupported(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _, err := rw.Hijack()
	assert.Error(t, err)
}
