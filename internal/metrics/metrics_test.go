package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlens/riftlens/internal/observability"
)

func useCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestRecordersEmit(t *testing.T) {
	collector := useCollector(t)

	RecordStage("league", OutcomeSoft, 30*time.Millisecond)
	SetActiveSessions(2)
	SetSubscribers(5)
	RecordUpstreamCall("league.by-summoner", 429, 80*time.Millisecond)
	RecordUpstreamCall("game.by-summoner", 0, time.Second)
	RecordUpstreamBackoff()
	RecordQueueWait(1200 * time.Millisecond)
	SetQueueDepth(4)
	RecordInboundThrottled()
	SetActiveConnections(3)
	RecordHealthCheck("store", false, 2*time.Millisecond)
	RecordCatalogRefresh(true, 130)
	RecordViewerError("SUMMONER_NOT_FOUND")
	RecordError("NOT_FOUND", 404)
	RecordPanic()
	RecordMatchAnalysis(AnalysisStored)
	SetAnalysisBacklog(3)

	for _, name := range []string{
		StageRunsTotal, StageDuration, ActiveSessions, SessionSubscribers,
		UpstreamBackoffsTotal, DispatchQueueWait, DispatchQueueDepth, InboundRequestsThrottle,
		ActiveConnections, HealthCheckTotal, HealthCheckDuration, CatalogRefreshTotal, CatalogChampions,
		ViewerErrorsName, ErrorsTotalName, PanicsTotalName, MatchAnalysisTotal, MatchAnalysisBacklog,
	} {
		assert.Greater(t, collector.CountMetricsByName(name), 0, name)
	}
	assert.Equal(t, 2, collector.CountMetricsByName(UpstreamCallsTotal))
}

func TestRecordersWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordStage("core", OutcomeSuccess, time.Millisecond)
		RecordViewerError("RATE_LIMITED")
		SetServerUptime(10)
		RecordCatalogRefresh(false, 0)
	})
}
