package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/riftlens/riftlens/internal/observability"
)

// Pinger is implemented by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker fails when the store does not answer a ping.
func StoreChecker(p Pinger) HealthChecker {
	return CheckerFunc(func(ctx context.Context) error {
		if p == nil {
			return errors.New("store not configured")
		}
		return p.Ping(ctx)
	})
}

// QueueChecker fails once the dispatch queue stops accepting work.
func QueueChecker(closed func() bool) HealthChecker {
	return CheckerFunc(func(ctx context.Context) error {
		if closed() {
			return errors.New("dispatch queue closed")
		}
		return nil
	})
}

// CatalogChecker reports degraded until the champion catalog has loaded.
// Sessions started before then fail their core stage.
func CatalogChecker(loaded func() bool) HealthChecker {
	return CheckerFunc(func(ctx context.Context) error {
		if !loaded() {
			return fmt.Errorf("champion catalog not loaded: %w", ErrDegraded)
		}
		return nil
	})
}

// TelemetryChecker reports degraded when metrics are enabled but the
// telemetry system never came up.
func TelemetryChecker(enabled bool) HealthChecker {
	return CheckerFunc(func(ctx context.Context) error {
		if enabled && observability.TelemetrySystem == nil {
			return fmt.Errorf("telemetry not initialized: %w", ErrDegraded)
		}
		return nil
	})
}
