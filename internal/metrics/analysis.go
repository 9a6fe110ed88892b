package metrics

import "github.com/riftlens/riftlens/internal/observability"

// Detailed match analysis metrics
const (
	MatchAnalysisTotal   = "match_analysis_total"
	MatchAnalysisBacklog = "match_analysis_backlog"
)

// Match analysis outcomes used as metric labels.
const (
	AnalysisStored  = "stored"
	AnalysisSkipped = "skipped"
	AnalysisDropped = "dropped"
	AnalysisFailed  = "failed"
)

// RecordMatchAnalysis counts one detailed match job by outcome.
func RecordMatchAnalysis(outcome string) {
	count(MatchAnalysisTotal, map[string]string{"outcome": outcome})
}

// SetAnalysisBacklog sets the number of queued detailed match jobs.
func SetAnalysisBacklog(n int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(MatchAnalysisBacklog, float64(n), nil)
	}
}
