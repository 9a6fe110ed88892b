package stages

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/observability"
)

// leagueBatch is the most summoner ids the league endpoint accepts per call.
const leagueBatch = 10

type leagueStage struct{ *deps }

func (s *leagueStage) Name() core.Stage { return core.StageLeague }

func (s *leagueStage) Run(ctx context.Context, sc *Context) (any, error) {
	roster, err := requireCore(core.StageLeague, sc)
	if err != nil {
		return nil, err
	}
	ids := uniqueIDs(roster.SummonerIDs())

	stale, _, err := s.staleIDs(ctx, ids, core.StageLeague, s.freshness.League)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		if err := s.refresh(ctx, sc.Region, stale); err != nil {
			return nil, err
		}
	}

	entries, err := s.store.LeagueEntries(ctx, ids, s.queue)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]core.LeagueEntry, len(entries))
	for _, entry := range entries {
		byID[entry.SummonerID] = entry
	}

	rows := []core.LeagueRow{}
	for _, p := range roster.Participants() {
		entry, ok := byID[p.SummonerID]
		if !ok {
			continue
		}
		rows = append(rows, core.LeagueRow{
			ParticipantNo: p.ParticipantNo,
			League:        entry.Tier,
			Division:      entry.Division,
			Wins:          entry.Wins,
			Losses:        entry.Losses,
		})
	}
	return rows, nil
}

// refresh fetches standings for stale summoners in batches. Summoners absent
// from a reply are unranked and still marked refreshed.
func (s *leagueStage) refresh(ctx context.Context, region string, stale []int64) error {
	now := s.clock.Now()
	for start := 0; start < len(stale); start += leagueBatch {
		end := min(start+leagueBatch, len(stale))
		batch := stale[start:end]

		var leagues map[int64][]riot.League
		err := s.withRetry(ctx, func() error {
			var err error
			leagues, err = s.api.LeagueEntries(ctx, region, batch)
			return err
		})
		if err != nil && !core.IsNotFound(err) {
			return err
		}

		entries := leagueEntries(leagues, now)
		if err := s.store.UpsertLeagueEntries(ctx, entries); err != nil {
			return err
		}
		if err := s.store.MarkRefreshed(ctx, batch, core.StageLeague, now); err != nil {
			return err
		}
		observability.Debug("League entries refreshed",
			zap.Int("summoners", len(batch)),
			zap.Int("entries", len(entries)))
	}
	return nil
}

func leagueEntries(leagues map[int64][]riot.League, now time.Time) []core.LeagueEntry {
	var out []core.LeagueEntry
	for summonerID, list := range leagues {
		for _, league := range list {
			if len(league.Entries) == 0 {
				continue
			}
			own := league.Entries[0]
			out = append(out, core.LeagueEntry{
				SummonerID:   summonerID,
				Queue:        league.Queue,
				Tier:         league.Tier,
				Division:     own.Division,
				LeaguePoints: own.LeaguePoints,
				Wins:         own.Wins,
				Losses:       own.Losses,
				UpdatedAt:    now,
			})
		}
	}
	return out
}
