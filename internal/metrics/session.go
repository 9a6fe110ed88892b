package metrics

import (
	"time"

	"github.com/riftlens/riftlens/internal/observability"
)

// Stage outcomes used as metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeSoft    = "soft_failure"
	OutcomeHard    = "hard_failure"
)

// RecordStage records one stage execution.
func RecordStage(stage string, outcome string, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		StageRunsTotal,
		1,
		map[string]string{
			"stage":   stage,
			"outcome": outcome,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		StageDuration,
		duration,
		map[string]string{
			"stage": stage,
		},
	)
}

// SetActiveSessions sets the number of registered match sessions.
func SetActiveSessions(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ActiveSessions, float64(count), nil)
	}
}

// SetSubscribers sets the number of attached viewers across sessions.
func SetSubscribers(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(SessionSubscribers, float64(count), nil)
	}
}
