// Package analysis fetches the full statistics of matches found in match
// lists and stores them for champion averages. It runs behind the session
// pipeline: submitting never blocks, and a failed fetch is logged and dropped.
package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/metrics"
	"github.com/riftlens/riftlens/internal/observability"
)

// Defaults for zero Options fields.
const (
	DefaultBacklog      = 256
	DefaultMaxPerSubmit = 10
	DefaultFetchTimeout = 2 * time.Minute
)

// API fetches a detailed match through the dispatch queue.
type API interface {
	Match(ctx context.Context, region string, matchID int64) (*riot.MatchDetail, error)
}

// Store persists detailed matches.
type Store interface {
	HasDetailedMatch(ctx context.Context, matchID int64) (bool, error)
	InsertDetailedMatch(ctx context.Context, m *core.DetailedMatch) error
}

// Options configures an Analyzer.
type Options struct {
	API   API
	Store Store
	// Backlog bounds queued jobs; submissions beyond it are dropped.
	Backlog int
	// MaxPerSubmit caps the matches taken from one Submit call.
	MaxPerSubmit int
	// FetchTimeout bounds one fetch including its wait in the dispatch queue.
	FetchTimeout time.Duration
}

type job struct {
	region  string
	matchID int64
}

// Analyzer is a single worker draining a bounded job queue. Jobs are fetched
// one at a time, so analysis holds at most one slot in the dispatch queue and
// session stages are never stuck behind a batch of it.
type Analyzer struct {
	api     API
	store   Store
	limit   int
	timeout time.Duration
	jobs    chan job

	mu      sync.Mutex
	pending map[int64]struct{}
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts an analyzer worker. Close stops it.
func New(opts Options) *Analyzer {
	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	limit := opts.MaxPerSubmit
	if limit <= 0 {
		limit = DefaultMaxPerSubmit
	}
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Analyzer{
		api:     opts.API,
		store:   opts.Store,
		limit:   limit,
		timeout: timeout,
		jobs:    make(chan job, backlog),
		pending: make(map[int64]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

// Submit queues up to MaxPerSubmit of matchIDs, in order, and returns how
// many were accepted. Matches already queued are skipped; a full backlog
// drops the rest.
func (a *Analyzer) Submit(region string, matchIDs []int64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0
	}

	accepted := 0
	for _, id := range matchIDs {
		if accepted == a.limit {
			break
		}
		if _, queued := a.pending[id]; queued {
			continue
		}
		select {
		case a.jobs <- job{region: region, matchID: id}:
			a.pending[id] = struct{}{}
			accepted++
		default:
			metrics.RecordMatchAnalysis(metrics.AnalysisDropped)
			observability.Debug("Match analysis backlog full", zap.Int64("match_id", id))
			metrics.SetAnalysisBacklog(len(a.pending))
			return accepted
		}
	}
	metrics.SetAnalysisBacklog(len(a.pending))
	return accepted
}

// Pending returns the number of queued or running jobs.
func (a *Analyzer) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Close stops intake, abandons queued jobs and waits for the worker. A fetch
// in flight is cancelled; its dispatch still completes and is discarded.
func (a *Analyzer) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Analyzer) run() {
	defer close(a.done)
	for {
		select {
		case <-a.ctx.Done():
			return
		case j := <-a.jobs:
			if a.ctx.Err() != nil {
				return
			}
			metrics.RecordMatchAnalysis(a.analyze(j))
			a.mu.Lock()
			delete(a.pending, j.matchID)
			metrics.SetAnalysisBacklog(len(a.pending))
			a.mu.Unlock()
		}
	}
}

func (a *Analyzer) analyze(j job) string {
	ctx, cancel := context.WithTimeout(a.ctx, a.timeout)
	defer cancel()

	stored, err := a.store.HasDetailedMatch(ctx, j.matchID)
	if err != nil {
		observability.Warn("Detailed match lookup failed", zap.Int64("match_id", j.matchID), zap.Error(err))
		return metrics.AnalysisFailed
	}
	if stored {
		return metrics.AnalysisSkipped
	}

	detail, err := a.api.Match(ctx, j.region, j.matchID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			observability.Debug("Detailed match unavailable",
				zap.Int64("match_id", j.matchID),
				zap.String("region", j.region),
				zap.Error(err))
		}
		return metrics.AnalysisFailed
	}
	if err := a.store.InsertDetailedMatch(ctx, detail.Detailed(j.region)); err != nil {
		observability.Warn("Failed to store detailed match", zap.Int64("match_id", j.matchID), zap.Error(err))
		return metrics.AnalysisFailed
	}
	observability.Debug("Detailed match stored",
		zap.Int64("match_id", j.matchID),
		zap.Int("participants", len(detail.Participants)))
	return metrics.AnalysisStored
}
