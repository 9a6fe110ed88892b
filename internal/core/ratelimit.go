package core

import (
	"errors"
	"fmt"
	"time"
)

// RateWindow caps the number of upstream calls within a trailing window.
type RateWindow struct {
	MaxCalls int           `json:"max_calls"`
	Window   time.Duration `json:"window"`
}

// Validate checks the window invariants.
func (w RateWindow) Validate() error {
	if w.MaxCalls < 1 {
		return fmt.Errorf("rate window max calls must be >= 1, got %d", w.MaxCalls)
	}
	if w.Window <= 0 {
		return fmt.Errorf("rate window duration must be > 0, got %s", w.Window)
	}
	return nil
}

// ValidateWindows checks a window set.
func ValidateWindows(windows []RateWindow) error {
	if len(windows) == 0 {
		return errors.New("at least one rate window is required")
	}
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RateLimitState captures persisted quota state for an upstream key.
type RateLimitState struct {
	RequestCount int
	WindowStart  time.Time
	BackoffUntil *time.Time
	Last429At    *time.Time
}
