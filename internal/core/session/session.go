package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/stages"
	"github.com/riftlens/riftlens/internal/observability"
)

// ErrExpired is returned when subscribing to a session that has expired.
var ErrExpired = errors.New("session expired")

// State is the pipeline state of a session.
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the aggregation state of one match. The cache only grows and a
// stage runs at most once per session.
type Session struct {
	matchID int64
	region  string
	match   Match
	runners []stages.Runner
	clock   clockwork.Clock
	// onDrop is told which session dropped the connection
	onDrop func(matchID int64, connID string)

	mu           sync.Mutex
	state        State
	stageIndex   int
	cache        map[core.Stage]any
	softErrors   map[core.Stage]*core.StageError
	crucial      *core.StageError
	broadcaster  *Broadcaster
	createdAt    time.Time
	lastActivity time.Time
	started      bool
	expired      bool

	done chan struct{}
}

// New returns a session for m that will run runners in order once started.
func New(m Match, runners []stages.Runner, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	names := make([]core.Stage, 0, len(runners))
	for _, r := range runners {
		names = append(names, r.Name())
	}
	now := clock.Now()
	return &Session{
		matchID:      m.ID,
		region:       m.Region,
		match:        m,
		runners:      runners,
		clock:        clock,
		state:        StateInitializing,
		cache:        make(map[core.Stage]any),
		softErrors:   make(map[core.Stage]*core.StageError),
		broadcaster:  NewBroadcaster(names),
		createdAt:    now,
		lastActivity: now,
		done:         make(chan struct{}),
	}
}

// MatchID returns the match identifier.
func (s *Session) MatchID() int64 { return s.matchID }

// Region returns the match region.
func (s *Session) Region() string { return s.region }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Done is closed when the pipeline has completed or failed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start runs the pipeline in its own goroutine. Later calls are no-ops.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.state = StateRunning
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	sc := &stages.Context{MatchID: s.matchID, Region: s.region, Game: s.match.Game}
	for i, runner := range s.runners {
		s.mu.Lock()
		if s.expired {
			s.mu.Unlock()
			observability.Debug("Session expired mid-pipeline",
				zap.Int64("match_id", s.matchID),
				zap.Int("stage_index", i))
			return
		}
		s.stageIndex = i
		s.mu.Unlock()

		payload, stageErr := stages.Execute(ctx, runner, sc)
		switch {
		case stageErr == nil:
			s.complete(runner.Name(), payload)
		case stageErr.Hard:
			s.fail(stageErr)
			return
		default:
			s.softFail(stageErr)
		}
	}

	s.mu.Lock()
	s.state = StateCompleted
	s.stageIndex = len(s.runners)
	s.mu.Unlock()
	observability.Debug("Session pipeline completed", zap.Int64("match_id", s.matchID))
}

func (s *Session) complete(stage core.Stage, payload any) {
	s.mu.Lock()
	s.cache[stage] = payload
	s.lastActivity = s.clock.Now()
	var failed []string
	if !s.expired {
		failed = s.broadcaster.Broadcast(string(stage), stageEvent(stage, payload))
	}
	s.mu.Unlock()
	s.dropped(failed)
}

func (s *Session) softFail(stageErr *core.StageError) {
	observability.Info("Stage failed",
		zap.Int64("match_id", s.matchID),
		zap.String("stage", string(stageErr.Stage)),
		zap.Error(stageErr))

	s.mu.Lock()
	s.softErrors[stageErr.Stage] = stageErr
	s.lastActivity = s.clock.Now()
	var failed []string
	if !s.expired {
		failed = s.broadcaster.Broadcast(softErrorKey(stageErr.Stage), errorEvent(stageErr))
	}
	s.mu.Unlock()
	s.dropped(failed)
}

func (s *Session) fail(stageErr *core.StageError) {
	observability.Warn("Session pipeline stopped",
		zap.Int64("match_id", s.matchID),
		zap.String("stage", string(stageErr.Stage)),
		zap.Error(stageErr))

	s.mu.Lock()
	if s.crucial == nil {
		s.crucial = stageErr
	}
	s.state = StateFailed
	s.lastActivity = s.clock.Now()
	var failed []string
	if !s.expired {
		failed = s.broadcaster.Broadcast(crucialKey, errorEvent(s.crucial))
	}
	s.mu.Unlock()
	s.dropped(failed)
}

func (s *Session) dropped(ids []string) {
	for _, id := range ids {
		observability.Debug("Subscriber dropped after failed send",
			zap.Int64("match_id", s.matchID),
			zap.String("conn_id", id))
		if s.onDrop != nil {
			s.onDrop(s.matchID, id)
		}
	}
}

// AddSubscriber attaches conn and replays every result already produced.
// Replay and broadcast share the session lock, so a joiner never receives a
// stage twice.
func (s *Session) AddSubscriber(conn Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired {
		return ErrExpired
	}
	s.broadcaster.Add(conn)
	s.lastActivity = s.clock.Now()
	return s.broadcaster.Replay(conn.ID(), s.cache, s.softErrors, s.crucial)
}

// RemoveSubscriber detaches a connection. It reports whether it was attached.
func (s *Session) RemoveSubscriber(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.broadcaster.Remove(connID)
	if removed {
		s.lastActivity = s.clock.Now()
	}
	return removed
}

// Expire drops every subscriber and suppresses further broadcasts. A running
// stage is not interrupted; its result is cached but never delivered, and no
// later stage starts.
func (s *Session) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expired {
		return
	}
	s.expired = true
	s.broadcaster.Reset()
}

// Expired reports whether Expire was called.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// Subscribers returns the number of attached connections.
func (s *Session) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broadcaster.Len()
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	MatchID        int64         `json:"matchId"`
	Region         string        `json:"region"`
	State          string        `json:"state"`
	StageIndex     int           `json:"stageIndex"`
	Stages         []core.Stage  `json:"stages"`
	FailedStages   []core.Stage  `json:"failedStages,omitempty"`
	Crucial        *ErrorPayload `json:"crucial,omitempty"`
	Subscribers    int           `json:"subscribers"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastActivityAt time.Time     `json:"lastActivityAt"`
	Expired        bool          `json:"expired"`
}

// Snapshot returns the session state. Cached stages are listed in pipeline
// order.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		MatchID:        s.matchID,
		Region:         s.region,
		State:          s.state.String(),
		StageIndex:     s.stageIndex,
		Stages:         []core.Stage{},
		Subscribers:    s.broadcaster.Len(),
		CreatedAt:      s.createdAt,
		LastActivityAt: s.lastActivity,
		Expired:        s.expired,
	}
	for _, stage := range s.broadcaster.stages {
		if _, ok := s.cache[stage]; ok {
			snap.Stages = append(snap.Stages, stage)
		} else if _, ok := s.softErrors[stage]; ok {
			snap.FailedStages = append(snap.FailedStages, stage)
		}
	}
	if s.crucial != nil {
		payload := errorEvent(s.crucial).Data.(ErrorPayload)
		snap.Crucial = &payload
	}
	return snap
}

// Cached returns the payload of stage, if produced.
func (s *Session) Cached(stage core.Stage) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.cache[stage]
	return payload, ok
}
