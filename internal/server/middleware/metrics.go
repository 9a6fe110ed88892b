package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/observability"
)

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Hijack lets websocket upgrades pass through the metrics middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// getEndpointPattern extracts chi route pattern to avoid high-cardinality paths
func getEndpointPattern(r *http.Request) string {
	// Try to get chi route pattern
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if routePattern := rctx.RoutePattern(); routePattern != "" {
			return routePattern
		}
	}

	// Fallback to path-based categorization for non-chi routes
	path := r.URL.Path
	switch path {
	case "/health", "/health/live", "/health/ready", "/health/startup":
		return "/health/*"
	case "/version":
		return "/version"
	case "/metrics":
		return "/metrics"
	case "/ws":
		return "/ws"
	case "/api/v1/quota":
		return "/api/v1/quota"
	case "/":
		return "/"
	default:
		if strings.HasPrefix(path, "/api/v1/sessions") {
			return "/api/v1/sessions/*"
		}
		// For unknown paths, use a generic pattern to avoid cardinality issues
		return "/unknown"
	}
}

// WebsocketDurationName times viewer sockets from upgrade to close.
const WebsocketDurationName = "ws_connection_duration_ms"

func requestSize(r *http.Request) int64 {
	if r.ContentLength > 0 {
		return r.ContentLength
	}
	if size, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64); err == nil {
		return size
	}
	return 0
}

// RequestMetrics records per-request counters, sizes and latency. Websocket
// upgrades are long-lived, so they only report a connection duration.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start)
		endpoint := getEndpointPattern(r)

		if wrapped.statusCode == http.StatusSwitchingProtocols {
			_ = observability.TelemetrySystem.Histogram(WebsocketDurationName, duration, nil)
			observability.Debug("Websocket closed",
				zap.String("endpoint", endpoint),
				zap.Duration("duration", duration),
				zap.String("request_id", GetRequestID(r.Context())))
			return
		}
		recordHTTP(r, wrapped, endpoint, duration)
	})
}

func recordHTTP(r *http.Request, rw *responseWriter, endpoint string, duration time.Duration) {
	sys := observability.TelemetrySystem
	status := strconv.Itoa(rw.statusCode)
	labels := map[string]string{
		"method":   r.Method,
		"endpoint": endpoint,
		"status":   status,
	}
	sizeLabels := map[string]string{
		"method":   r.Method,
		"endpoint": endpoint,
	}
	reqSize := requestSize(r)

	_ = sys.Counter("http_requests_total", 1, labels)
	_ = sys.Histogram("http_request_duration_ms", duration, labels)
	_ = sys.Gauge("http_request_size_bytes", float64(reqSize), sizeLabels)
	_ = sys.Gauge("http_response_size_bytes", float64(rw.bytesWritten), sizeLabels)

	if rw.statusCode >= 400 {
		errorType := "client_error"
		if rw.statusCode >= 500 {
			errorType = "server_error"
		}
		_ = sys.Counter("http_errors_total", 1, map[string]string{
			"method":     r.Method,
			"endpoint":   endpoint,
			"status":     status,
			"error_type": errorType,
		})
	}

	observability.Info("HTTP request completed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("endpoint", endpoint),
		zap.Int("status", rw.statusCode),
		zap.Duration("duration", duration),
		zap.Int64("request_size", reqSize),
		zap.Int64("response_size", rw.bytesWritten),
		zap.String("request_id", GetRequestID(r.Context())))
}
