package metrics

import (
	"time"

	"github.com/riftlens/riftlens/internal/observability"
)

// Process-level metric names
const (
	ActiveConnections   = "app_active_connections"
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	CatalogRefreshTotal = "app_catalog_refresh_total"
	CatalogChampions    = "app_catalog_champions"
	ServerStartTime     = "app_server_start_time_seconds"
	ServerUptime        = "app_server_uptime_seconds"
)

func gauge(name string, value float64, tags map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(name, value, tags)
	}
}

func histogram(name string, d time.Duration, tags map[string]string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(name, d, tags)
	}
}

func status(ok bool, good, bad string) string {
	if ok {
		return good
	}
	return bad
}

// SetActiveConnections sets the number of open viewer sockets.
func SetActiveConnections(n int64) {
	gauge(ActiveConnections, float64(n), nil)
}

// RecordHealthCheck records one checker run.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	count(HealthCheckTotal, map[string]string{
		"check":  checkName,
		"status": status(healthy, "healthy", "unhealthy"),
	})
	histogram(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// RecordCatalogRefresh records one champion catalog refresh. champions is
// the catalog size afterwards.
func RecordCatalogRefresh(success bool, champions int) {
	count(CatalogRefreshTotal, map[string]string{"status": status(success, "success", "failure")})
	gauge(CatalogChampions, float64(champions), nil)
}

// SetServerStartTime records the server start as a unix timestamp.
func SetServerStartTime(unix int64) {
	gauge(ServerStartTime, float64(unix), nil)
}

// SetServerUptime records seconds since start.
func SetServerUptime(seconds int64) {
	gauge(ServerUptime, float64(seconds), nil)
}
