// Package stages implements the enrichment stages of a match pipeline. Each
// stage reads the store, refreshes stale records through the rate-limited
// provider API, writes them back and returns a payload for viewers.
package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/metrics"
	"github.com/riftlens/riftlens/internal/observability"
)

// Runner executes one named stage.
type Runner interface {
	Name() core.Stage
	Run(ctx context.Context, sc *Context) (any, error)
}

// Context is the per-session state shared by the stages of one pipeline.
// Stages run one at a time, so no locking is needed.
type Context struct {
	MatchID int64
	Region  string
	Game    *riot.CurrentGame

	// Core is set by the core stage.
	Core *core.CoreData
}

// API is the subset of provider endpoints the stages call.
type API interface {
	LeagueEntries(ctx context.Context, region string, summonerIDs []int64) (map[int64][]riot.League, error)
	RankedStats(ctx context.Context, region string, summonerID int64, season string) (*riot.RankedStats, error)
	RecentGames(ctx context.Context, region string, summonerID int64) (*riot.RecentGames, error)
	MatchList(ctx context.Context, region string, summonerID int64, season string, since time.Time) (*riot.MatchList, error)
}

// Store is the subset of the relational store the stages use.
type Store interface {
	LeagueEntries(ctx context.Context, summonerIDs []int64, queue string) ([]core.LeagueEntry, error)
	UpsertLeagueEntries(ctx context.Context, entries []core.LeagueEntry) error
	ChampionStats(ctx context.Context, summonerIDs []int64) ([]core.ChampionStat, error)
	UpsertChampionStats(ctx context.Context, stats []core.ChampionStat) error
	MostPlayed(ctx context.Context, summonerIDs []int64, limit int) ([]core.MostPlayedRow, error)
	InsertMatches(ctx context.Context, summonerID int64, matches []core.MatchRef) (int, error)
	RoleCounts(ctx context.Context, summonerIDs []int64) ([]core.RoleCount, error)
	RefreshTimes(ctx context.Context, summonerIDs []int64, kind core.Stage) (map[int64]time.Time, error)
	MarkRefreshed(ctx context.Context, summonerIDs []int64, kind core.Stage, at time.Time) error
}

// Catalog resolves champion ids.
type Catalog interface {
	Champion(id int64) (core.Champion, bool)
	Image(id int64) *core.Image
	Version() string
	Loaded() bool
}

// Freshness sets how long stored data is trusted per kind.
type Freshness struct {
	League   time.Duration
	Champion time.Duration
	Roles    time.Duration
}

// RetryPolicy retries transient provider failures. Every attempt is a new
// call through the dispatch queue.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
}

// Analyzer takes match ids for background detail fetches. Submit must not
// block.
type Analyzer interface {
	Submit(region string, matchIDs []int64) int
}

// Options configures the stage runners. Analyzer may be nil.
type Options struct {
	API          API
	Store        Store
	Catalog      Catalog
	Analyzer     Analyzer
	Clock        clockwork.Clock
	Freshness    Freshness
	TopChampions int
	Season       string
	Queue        string
	Retry        RetryPolicy
}

// Default option values.
const (
	DefaultTopChampions = 5
	DefaultSeason       = "SEASON2016"
	DefaultQueue        = "RANKED_SOLO_5x5"
)

type deps struct {
	api       API
	store     Store
	catalog   Catalog
	analyzer  Analyzer
	clock     clockwork.Clock
	freshness Freshness
	top       int
	season    string
	queue     string
	retry     RetryPolicy
}

// NewPipeline returns the runners of core.DefaultPipeline, in order.
func NewPipeline(opts Options) []Runner {
	d := &deps{
		api:       opts.API,
		store:     opts.Store,
		catalog:   opts.Catalog,
		analyzer:  opts.Analyzer,
		clock:     opts.Clock,
		freshness: opts.Freshness,
		top:       opts.TopChampions,
		season:    opts.Season,
		queue:     opts.Queue,
		retry:     opts.Retry,
	}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	if d.top <= 0 {
		d.top = DefaultTopChampions
	}
	if d.season == "" {
		d.season = DefaultSeason
	}
	if d.queue == "" {
		d.queue = DefaultQueue
	}

	return []Runner{
		&coreStage{d},
		&leagueStage{d},
		&championStage{d},
		&historyStage{d},
		&mostPlayedStage{d},
		&rolesStage{d},
	}
}

// Execute runs r and classifies its outcome. A nil result with a nil error
// and any error that is not a *core.StageError become soft failures.
func Execute(ctx context.Context, r Runner, sc *Context) (payload any, stageErr *core.StageError) {
	stage := r.Name()
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordPanic()
			observability.Error("Stage panicked",
				zap.String("stage", string(stage)),
				zap.Any("panic", rec))
			payload = nil
			stageErr = core.SoftFailure(stage, fetchMessage(stage), fmt.Errorf("panic: %v", rec))
		}
		outcome := metrics.OutcomeSuccess
		if stageErr != nil {
			outcome = metrics.OutcomeSoft
			if stageErr.Hard {
				outcome = metrics.OutcomeHard
			}
		}
		metrics.RecordStage(string(stage), outcome, time.Since(start))
	}()

	payload, err := r.Run(ctx, sc)
	return payload, classify(stage, payload, err)
}

func classify(stage core.Stage, payload any, err error) *core.StageError {
	if err == nil {
		if payload == nil {
			return core.SoftFailure(stage, fmt.Sprintf("no %s data", stage), nil)
		}
		return nil
	}
	if stageErr, ok := err.(*core.StageError); ok {
		if stageErr.Stage == "" {
			stageErr.Stage = stage
		}
		return stageErr
	}
	return core.SoftFailure(stage, fetchMessage(stage), err)
}

func fetchMessage(stage core.Stage) string {
	return fmt.Sprintf("could not fetch %s data", stage)
}

// Stale returns the ids with no refresh record or one older than threshold.
func Stale(ids []int64, refreshed map[int64]time.Time, threshold time.Duration, now time.Time) []int64 {
	var out []int64
	for _, id := range ids {
		at, ok := refreshed[id]
		if !ok || now.Sub(at) > threshold {
			out = append(out, id)
		}
	}
	return out
}

func (d *deps) withRetry(ctx context.Context, fn func() error) error {
	attempts := d.retry.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.New(
		retry.Attempts(attempts),
		retry.Delay(d.retry.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.RetryIf(core.IsTransient),
		retry.LastErrorOnly(true),
	).Do(fn)
}

// staleIDs loads refresh times for kind and filters by threshold.
func (d *deps) staleIDs(ctx context.Context, ids []int64, kind core.Stage, threshold time.Duration) ([]int64, map[int64]time.Time, error) {
	refreshed, err := d.store.RefreshTimes(ctx, ids, kind)
	if err != nil {
		return nil, nil, err
	}
	return Stale(ids, refreshed, threshold, d.clock.Now()), refreshed, nil
}

func requireCore(stage core.Stage, sc *Context) (*core.CoreData, error) {
	if sc == nil || sc.Core == nil {
		return nil, core.SoftFailure(stage, "match roster unavailable", nil)
	}
	return sc.Core, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
