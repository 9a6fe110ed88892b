package metrics

import (
	"strconv"
	"time"

	"github.com/riftlens/riftlens/internal/observability"
)

// Upstream and dispatch queue metrics
const (
	UpstreamCallsTotal      = "upstream_calls_total"
	UpstreamCallDuration    = "upstream_call_duration_ms"
	UpstreamBackoffsTotal   = "upstream_backoffs_total"
	DispatchQueueWait       = "dispatch_queue_wait_ms"
	DispatchQueueDepth      = "dispatch_queue_depth"
	StageRunsTotal          = "stage_runs_total"
	StageDuration           = "stage_duration_ms"
	ActiveSessions          = "active_sessions"
	SessionSubscribers      = "session_subscribers"
	InboundRequestsThrottle = "inbound_requests_throttled_total"
)

// RecordUpstreamCall records one dispatched upstream call. A status of 0
// means the call failed before a response arrived.
func RecordUpstreamCall(endpoint string, status int, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}

	_ = observability.TelemetrySystem.Counter(
		UpstreamCallsTotal,
		1,
		map[string]string{
			"endpoint": endpoint,
			"status":   label,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		UpstreamCallDuration,
		duration,
		map[string]string{
			"endpoint": endpoint,
		},
	)
}

// RecordUpstreamBackoff records a provider-imposed backoff.
func RecordUpstreamBackoff() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(UpstreamBackoffsTotal, 1, nil)
	}
}

// RecordQueueWait records how long the dispatcher slept before a call.
func RecordQueueWait(wait time.Duration) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(DispatchQueueWait, wait, nil)
	}
}

// SetQueueDepth sets the number of undispatched items.
func SetQueueDepth(depth int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(DispatchQueueDepth, float64(depth), nil)
	}
}

// RecordInboundThrottled records a viewer request rejected by the per-connection limiter.
func RecordInboundThrottled() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(InboundRequestsThrottle, 1, nil)
	}
}
