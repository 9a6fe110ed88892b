package stages

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/observability"
)

type historyStage struct{ *deps }

func (s *historyStage) Name() core.Stage { return core.StageMatchHistory }

// Run fetches recent games for every participant. Participants whose call
// fails are left out; the stage fails only when every call failed.
func (s *historyStage) Run(ctx context.Context, sc *Context) (any, error) {
	roster, err := requireCore(core.StageMatchHistory, sc)
	if err != nil {
		return nil, err
	}
	participants := roster.Participants()

	results := make([]*riot.RecentGames, len(participants))
	errs := make([]error, len(participants))
	var g errgroup.Group
	for i, p := range participants {
		if p.SummonerID == 0 {
			continue
		}
		g.Go(func() error {
			errs[i] = s.withRetry(ctx, func() error {
				var err error
				results[i], err = s.api.RecentGames(ctx, sc.Region, p.SummonerID)
				return err
			})
			return nil
		})
	}
	_ = g.Wait()

	history := &core.MatchHistory{Data: []core.HistoryEntry{}, Version: s.catalogVersion()}
	attempted, failed := 0, 0
	var lastErr error
	for i, p := range participants {
		if p.SummonerID == 0 {
			continue
		}
		attempted++
		if errs[i] != nil {
			failed++
			lastErr = errs[i]
			observability.Debug("Recent games unavailable",
				zap.Int64("summoner_id", p.SummonerID),
				zap.Error(errs[i]))
			continue
		}
		history.Data = append(history.Data, core.HistoryEntry{
			SummonerID:    p.SummonerID,
			ParticipantNo: p.ParticipantNo,
			Games:         s.historyGames(results[i]),
		})
	}
	if attempted > 0 && failed == attempted {
		return nil, core.SoftFailure(core.StageMatchHistory, fetchMessage(core.StageMatchHistory), lastErr)
	}
	return history, nil
}

// historyGames skips games whose champion is not in the catalog.
func (s *historyStage) historyGames(recent *riot.RecentGames) []core.HistoryGame {
	games := []core.HistoryGame{}
	if recent == nil {
		return games
	}
	for _, game := range recent.Games {
		image := s.catalogImage(game.ChampionID)
		if image == nil {
			continue
		}
		games = append(games, core.HistoryGame{
			ChampionID: game.ChampionID,
			Win:        game.Stats.Win,
			Image:      image,
		})
	}
	return games
}

func (d *deps) catalogVersion() string {
	if d.catalog == nil {
		return ""
	}
	return d.catalog.Version()
}

func (d *deps) catalogImage(id int64) *core.Image {
	if d.catalog == nil {
		return nil
	}
	return d.catalog.Image(id)
}
