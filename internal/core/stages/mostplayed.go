package stages

import (
	"context"

	"github.com/riftlens/riftlens/internal/core"
)

type mostPlayedStage struct{ *deps }

func (s *mostPlayedStage) Name() core.Stage { return core.StageMostPlayed }

// Run reads the most played champions from stored ranked stats. It never
// calls the provider; the champion stage has already refreshed the rows.
func (s *mostPlayedStage) Run(ctx context.Context, sc *Context) (any, error) {
	roster, err := requireCore(core.StageMostPlayed, sc)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.MostPlayed(ctx, uniqueIDs(roster.SummonerIDs()), s.top)
	if err != nil {
		return nil, err
	}

	bySummoner := make(map[int64][]core.MostPlayedRow)
	for _, row := range rows {
		if champion, ok := s.lookup(row.ChampionID); ok {
			if row.ChampionName == "" {
				row.ChampionName = champion.Name
			}
			image := champion.Image
			row.ChampionImage = &image
		}
		bySummoner[row.SummonerID] = append(bySummoner[row.SummonerID], row)
	}

	out := core.MostPlayed{}
	for _, p := range roster.Participants() {
		if top, ok := bySummoner[p.SummonerID]; ok {
			out[p.ParticipantNo] = top
		}
	}
	return out, nil
}

func (d *deps) lookup(id int64) (core.Champion, bool) {
	if d.catalog == nil {
		return core.Champion{}, false
	}
	return d.catalog.Champion(id)
}
