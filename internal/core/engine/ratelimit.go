package engine

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/metrics"
	"github.com/riftlens/riftlens/internal/observability"
)

// DefaultMargin absorbs skew between the provider accepting a call and recording it.
const DefaultMargin = 75 * time.Millisecond

// DefaultWindows are the provider's development key quotas.
var DefaultWindows = []core.RateWindow{
	{MaxCalls: 10, Window: 10 * time.Second},
	{MaxCalls: 500, Window: 10 * time.Minute},
}

// RateLimitStore persists provider-imposed backoff across restarts.
type RateLimitStore interface {
	LoadBackoff(ctx context.Context, key string) (*core.RateLimitState, error)
	SaveBackoff(ctx context.Context, key string, state *core.RateLimitState) error
}

// LimiterConfig configures a RateLimiter.
type LimiterConfig struct {
	Windows []core.RateWindow
	Margin  time.Duration
	Clock   clockwork.Clock
	// Store and Key are optional; without them backoff is process-local.
	Store RateLimitStore
	Key   string
}

// RateLimiter tracks recent call timestamps against a set of sliding-window
// quotas. The timestamp ring is newest first and never longer than the
// largest MaxCalls across windows.
type RateLimiter struct {
	mu           sync.Mutex
	windows      []core.RateWindow
	margin       time.Duration
	clock        clockwork.Clock
	ring         []time.Time
	capacity     int
	recorded     int
	backoffUntil time.Time
	last429At    time.Time

	store RateLimitStore
	key   string
}

// NewRateLimiter validates the windows and returns an empty limiter.
func NewRateLimiter(cfg LimiterConfig) (*RateLimiter, error) {
	windows := cfg.Windows
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	if err := core.ValidateWindows(windows); err != nil {
		return nil, err
	}

	capacity := 0
	for _, w := range windows {
		if w.MaxCalls > capacity {
			capacity = w.MaxCalls
		}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	margin := cfg.Margin
	if margin < 0 {
		margin = 0
	}

	key := cfg.Key
	if key == "" {
		key = "upstream"
	}

	return &RateLimiter{
		windows:  append([]core.RateWindow(nil), windows...),
		margin:   margin,
		clock:    clock,
		ring:     make([]time.Time, 0, capacity),
		capacity: capacity,
		store:    cfg.Store,
		key:      key,
	}, nil
}

// TimeUntilNextAllowedCall returns how long the next call must wait. The most
// restrictive window governs; a window with fewer recorded calls than its cap
// imposes no wait.
func (r *RateLimiter) TimeUntilNextAllowedCall() time.Duration {
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.waitLocked(r.clock.Now())
}

func (r *RateLimiter) waitLocked(now time.Time) time.Duration {
	var wait time.Duration
	for _, w := range r.windows {
		if len(r.ring) < w.MaxCalls {
			continue
		}
		oldest := r.ring[w.MaxCalls-1]
		if d := oldest.Add(w.Window + r.margin).Sub(now); d > wait {
			wait = d
		}
	}

	if !r.backoffUntil.IsZero() {
		if d := r.backoffUntil.Sub(now); d > wait {
			wait = d
		}
	}

	return wait
}

// RecordCall prepends now to the ring, evicting the oldest entry at capacity.
func (r *RateLimiter) RecordCall(now time.Time) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.ring) < r.capacity {
		r.ring = append(r.ring, time.Time{})
	}
	copy(r.ring[1:], r.ring[:len(r.ring)-1])
	r.ring[0] = now
	r.recorded++
}

// Record429 applies a backoff window from a 429 response and persists it.
// Without a Retry-After the limiter backs off for its shortest window plus
// the margin.
func (r *RateLimiter) Record429(ctx context.Context, retryAfter time.Duration) error {
	if r == nil {
		return nil
	}
	if retryAfter <= 0 {
		retryAfter = r.minBackoff()
	}

	r.mu.Lock()
	now := r.clock.Now()
	r.last429At = now
	if until := now.Add(retryAfter); until.After(r.backoffUntil) {
		r.backoffUntil = until
	}
	state := r.stateLocked()
	r.mu.Unlock()

	metrics.RecordUpstreamBackoff()
	observability.Warn("Upstream quota exceeded, backing off",
		zap.String("key", r.key),
		zap.Duration("retry_after", retryAfter))

	if r.store == nil {
		return nil
	}
	return r.store.SaveBackoff(ctx, r.key, state)
}

func (r *RateLimiter) minBackoff() time.Duration {
	shortest := r.windows[0].Window
	for _, w := range r.windows[1:] {
		if w.Window < shortest {
			shortest = w.Window
		}
	}
	return shortest + r.margin
}

// Restore loads a persisted backoff, if one is still in effect.
func (r *RateLimiter) Restore(ctx context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}

	state, err := r.store.LoadBackoff(ctx, r.key)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if state.BackoffUntil != nil && state.BackoffUntil.After(r.clock.Now()) {
		r.backoffUntil = *state.BackoffUntil
	}
	if state.Last429At != nil {
		r.last429At = *state.Last429At
	}
	return nil
}

func (r *RateLimiter) stateLocked() *core.RateLimitState {
	state := &core.RateLimitState{RequestCount: r.recorded}
	if len(r.ring) > 0 {
		state.WindowStart = r.ring[len(r.ring)-1]
	} else {
		state.WindowStart = r.clock.Now()
	}
	if !r.backoffUntil.IsZero() {
		until := r.backoffUntil
		state.BackoffUntil = &until
	}
	if !r.last429At.IsZero() {
		at := r.last429At
		state.Last429At = &at
	}
	return state
}

// WindowUsage reports one window's current consumption.
type WindowUsage struct {
	MaxCalls int           `json:"max_calls"`
	Window   time.Duration `json:"window"`
	Used     int           `json:"used"`
	Wait     time.Duration `json:"wait"`
}

// LimiterSnapshot is a point-in-time view of quota state.
type LimiterSnapshot struct {
	Key          string        `json:"key"`
	Windows      []WindowUsage `json:"windows"`
	Recorded     int           `json:"recorded"`
	Wait         time.Duration `json:"wait"`
	BackoffUntil *time.Time    `json:"backoff_until,omitempty"`
}

// Snapshot reports per-window usage for inspection.
func (r *RateLimiter) Snapshot() LimiterSnapshot {
	if r == nil {
		return LimiterSnapshot{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	snap := LimiterSnapshot{
		Key:      r.key,
		Recorded: r.recorded,
		Wait:     r.waitLocked(now),
		Windows:  make([]WindowUsage, 0, len(r.windows)),
	}

	for _, w := range r.windows {
		used := 0
		for _, ts := range r.ring {
			if now.Sub(ts) >= w.Window {
				break
			}
			used++
		}
		if used > w.MaxCalls {
			used = w.MaxCalls
		}

		var wait time.Duration
		if len(r.ring) >= w.MaxCalls {
			if d := r.ring[w.MaxCalls-1].Add(w.Window + r.margin).Sub(now); d > 0 {
				wait = d
			}
		}
		snap.Windows = append(snap.Windows, WindowUsage{
			MaxCalls: w.MaxCalls,
			Window:   w.Window,
			Used:     used,
			Wait:     wait,
		})
	}

	if r.backoffUntil.After(now) {
		until := r.backoffUntil
		snap.BackoffUntil = &until
	}

	return snap
}
