package metrics

import (
	"strconv"

	"github.com/riftlens/riftlens/internal/observability"
)

// Error metric names
const (
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
	ViewerErrorsName     = "viewer_errors_total"
)

func count(name string, tags map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(name, 1, tags)
	}
}

// RecordError records an HTTP error response by code and status.
func RecordError(errorCode string, httpStatus int) {
	count(ErrorsTotalName, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordErrorByEndpoint records an HTTP error response by route.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	count(ErrorsByEndpointName, map[string]string{
		"endpoint":   endpoint,
		"error_code": errorCode,
	})
}

// RecordViewerError records an error event pushed to a websocket viewer.
func RecordViewerError(errorCode string) {
	count(ViewerErrorsName, map[string]string{"error_code": errorCode})
}

// RecordPanic records a recovered panic in a handler or stage.
func RecordPanic() {
	count(PanicsTotalName, nil)
}
