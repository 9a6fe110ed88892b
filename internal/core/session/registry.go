package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core/stages"
	"github.com/riftlens/riftlens/internal/metrics"
	"github.com/riftlens/riftlens/internal/observability"
)

// Registry defaults.
const (
	DefaultTTL         = time.Hour
	DefaultMaxSessions = 1024
)

// ErrRegistryClosed is returned after Close.
var ErrRegistryClosed = errors.New("session registry closed")

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Pipeline is shared by every session; runners hold no per-match state.
	Pipeline []stages.Runner
	// TTL is measured from session creation, not from last activity.
	TTL         time.Duration
	MaxSessions int
	Clock       clockwork.Clock
}

// Registry maps match ids to sessions and viewer connections to the one
// session each is attached to.
type Registry struct {
	pipeline []stages.Runner
	clock    clockwork.Clock
	ttl      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions *expirable.LRU[int64, *Session]
	conns    map[string]int64
	closed   bool
}

// NewRegistry returns an empty registry. Pipelines of its sessions run under
// a context that Close cancels.
func NewRegistry(opts RegistryOptions) *Registry {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	size := opts.MaxSessions
	if size <= 0 {
		size = DefaultMaxSessions
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		pipeline: opts.Pipeline,
		clock:    clock,
		ttl:      ttl,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[string]int64),
	}
	// runs under the lru lock, so it must not call back into the registry
	r.sessions = expirable.NewLRU[int64, *Session](size, func(matchID int64, s *Session) {
		s.Expire()
		observability.Debug("Session expired", zap.Int64("match_id", matchID))
	}, ttl)
	return r
}

// FindOrCreate returns the live session for m, creating and starting one
// when none exists. Concurrent calls for one match create one session.
func (r *Registry) FindOrCreate(m Match) (*Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findOrCreateLocked(m)
}

func (r *Registry) findOrCreateLocked(m Match) (*Session, bool, error) {
	if r.closed {
		return nil, false, ErrRegistryClosed
	}
	if s, ok := r.sessions.Get(m.ID); ok && !r.stale(s) {
		return s, false, nil
	}
	// an entry past its TTL may still be present; Remove runs its eviction
	r.sessions.Remove(m.ID)

	s := New(m, r.pipeline, r.clock)
	s.onDrop = r.forget
	r.sessions.Add(m.ID, s)
	s.Start(r.ctx)

	metrics.SetActiveSessions(r.sessions.Len())
	observability.Info("Session created",
		zap.Int64("match_id", m.ID),
		zap.String("region", m.Region))
	return s, true, nil
}

// stale covers the gap between TTL expiry and the lru's background sweep.
func (r *Registry) stale(s *Session) bool {
	return s.Expired() || r.clock.Since(s.CreatedAt()) >= r.ttl
}

// Subscribe attaches conn to the session of m, detaching it from any
// previous session first, and replays cached results.
func (r *Registry) Subscribe(conn Conn, m Match) (*Session, error) {
	r.mu.Lock()
	previous := r.detachLocked(conn.ID())
	s, _, err := r.findOrCreateLocked(m)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.conns[conn.ID()] = m.ID
	subscribers := len(r.conns)
	r.mu.Unlock()

	if previous != nil && previous != s {
		previous.RemoveSubscriber(conn.ID())
	}
	if err := s.AddSubscriber(conn); err != nil {
		r.forget(m.ID, conn.ID())
		return nil, err
	}
	metrics.SetSubscribers(subscribers)
	return s, nil
}

// Unsubscribe detaches conn from its session. It reports whether the
// connection was attached.
func (r *Registry) Unsubscribe(connID string) bool {
	r.mu.Lock()
	s := r.detachLocked(connID)
	subscribers := len(r.conns)
	r.mu.Unlock()

	metrics.SetSubscribers(subscribers)
	if s == nil {
		return false
	}
	return s.RemoveSubscriber(connID)
}

// detachLocked removes the connection index entry and returns the session it
// pointed at, if that session is still registered.
func (r *Registry) detachLocked(connID string) *Session {
	matchID, ok := r.conns[connID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)
	s, ok := r.sessions.Peek(matchID)
	if !ok {
		return nil
	}
	return s
}

// forget drops the index entry of a connection its session already removed.
// An entry that has moved on to another match is left alone.
func (r *Registry) forget(matchID int64, connID string) {
	r.mu.Lock()
	if current, ok := r.conns[connID]; ok && current == matchID {
		delete(r.conns, connID)
	}
	subscribers := len(r.conns)
	r.mu.Unlock()
	metrics.SetSubscribers(subscribers)
}

// Expire removes the session of matchID. Its viewers stay connected but get
// no further updates.
func (r *Registry) Expire(matchID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := r.sessions.Remove(matchID)
	metrics.SetActiveSessions(r.sessions.Len())
	return removed
}

// Get returns the live session of matchID.
func (r *Registry) Get(matchID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions.Peek(matchID)
	if !ok || r.stale(s) {
		return nil, false
	}
	return s, true
}

// List returns snapshots of live sessions, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	values := r.sessions.Values()
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(values))
	for _, s := range values {
		snap := s.Snapshot()
		if snap.Expired {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].MatchID < out[j].MatchID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Len()
}

// Close expires every session and cancels running pipelines.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancel()
	r.sessions.Purge()
	r.conns = make(map[string]int64)
	metrics.SetActiveSessions(0)
	metrics.SetSubscribers(0)
}
