package stages

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/observability"
)

type championStage struct{ *deps }

func (s *championStage) Name() core.Stage { return core.StageChampion }

func (s *championStage) Run(ctx context.Context, sc *Context) (any, error) {
	roster, err := requireCore(core.StageChampion, sc)
	if err != nil {
		return nil, err
	}
	ids := uniqueIDs(roster.SummonerIDs())

	stale, _, err := s.staleIDs(ctx, ids, core.StageChampion, s.freshness.Champion)
	if err != nil {
		return nil, err
	}
	failed := 0
	if len(stale) > 0 {
		failed, err = s.refresh(ctx, sc.Region, stale)
		if err != nil {
			return nil, err
		}
	}

	stats, err := s.store.ChampionStats(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 && failed > 0 && failed == len(stale) {
		return nil, core.SoftFailure(core.StageChampion, fetchMessage(core.StageChampion), nil)
	}

	type key struct{ summoner, champion int64 }
	byKey := make(map[key]core.ChampionStat, len(stats))
	for _, stat := range stats {
		byKey[key{stat.SummonerID, stat.ChampionID}] = stat
	}

	rows := []core.ChampionRow{}
	for _, p := range roster.Participants() {
		stat, ok := byKey[key{p.SummonerID, p.ChampionID}]
		if !ok {
			continue
		}
		name := stat.ChampionName
		if name == "" {
			name = p.ChampionName
		}
		rows = append(rows, core.ChampionRow{
			ParticipantNo:   p.ParticipantNo,
			ChampionName:    name,
			ChampionWins:    stat.Wins,
			ChampionLosses:  stat.Losses,
			ChampionKills:   stat.Kills,
			ChampionDeaths:  stat.Deaths,
			ChampionAssists: stat.Assists,
		})
	}
	return rows, nil
}

// refresh fetches ranked stats per stale summoner. A failed summoner is
// skipped so the others still count; it returns how many failed.
func (s *championStage) refresh(ctx context.Context, region string, stale []int64) (int, error) {
	results := make([]*riot.RankedStats, len(stale))
	errs := make([]error, len(stale))

	// calls are serialized by the dispatch queue; enqueueing them together
	// keeps the queue busy instead of waiting on each round trip
	var g errgroup.Group
	for i, id := range stale {
		g.Go(func() error {
			errs[i] = s.withRetry(ctx, func() error {
				var err error
				results[i], err = s.api.RankedStats(ctx, region, id, s.season)
				return err
			})
			return nil
		})
	}
	_ = g.Wait()

	now := s.clock.Now()
	var (
		stats     []core.ChampionStat
		refreshed []int64
		failed    int
	)
	for i, id := range stale {
		switch {
		case errs[i] == nil:
			stats = append(stats, championStats(id, results[i], now)...)
			refreshed = append(refreshed, id)
		case core.IsNotFound(errs[i]):
			// unranked this season
			refreshed = append(refreshed, id)
		default:
			failed++
			observability.Warn("Ranked stats refresh failed",
				zap.Int64("summoner_id", id),
				zap.Error(errs[i]))
		}
	}

	if err := s.store.UpsertChampionStats(ctx, stats); err != nil {
		return failed, err
	}
	if err := s.store.MarkRefreshed(ctx, refreshed, core.StageChampion, now); err != nil {
		return failed, err
	}
	return failed, nil
}

func championStats(summonerID int64, ranked *riot.RankedStats, now time.Time) []core.ChampionStat {
	if ranked == nil {
		return nil
	}
	out := make([]core.ChampionStat, 0, len(ranked.Champions))
	for _, c := range ranked.Champions {
		out = append(out, core.ChampionStat{
			SummonerID: summonerID,
			ChampionID: c.ID,
			Games:      c.Stats.TotalSessionsPlayed,
			Wins:       c.Stats.TotalSessionsWon,
			Losses:     c.Stats.TotalSessionsLost,
			Kills:      c.Stats.TotalChampionKills,
			Deaths:     c.Stats.TotalDeathsPerSession,
			Assists:    c.Stats.TotalAssists,
			UpdatedAt:  now,
		})
	}
	return out
}
