package stages

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/observability"
)

// Role names reported to viewers.
const (
	RoleAdc     = "Adc"
	RoleSupport = "Support"
	RoleJungle  = "Jungle"
	RoleOther   = "Other"
)

// RoleName maps a provider lane and role pair to a display role.
func RoleName(lane, role string) string {
	switch strings.ToUpper(role) {
	case "DUO_CARRY":
		return RoleAdc
	case "DUO_SUPPORT":
		return RoleSupport
	case "SOLO":
		if lane == "" {
			return RoleOther
		}
		return capitalize(lane)
	case "NONE":
		if strings.EqualFold(lane, "JUNGLE") {
			return RoleJungle
		}
	}
	return RoleOther
}

func capitalize(s string) string {
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// RoleShares merges raw lane and role counts into display roles, sorted by
// games played. Percentages are of all counted games, one decimal.
func RoleShares(counts []core.RoleCount) []core.RoleShare {
	totals := make(map[string]int)
	all := 0
	for _, c := range counts {
		totals[RoleName(c.Lane, c.Role)] += c.Games
		all += c.Games
	}

	shares := make([]core.RoleShare, 0, len(totals))
	for role, games := range totals {
		percent := 0.0
		if all > 0 {
			percent = float64(games) / float64(all) * 100
		}
		shares = append(shares, core.RoleShare{
			Role:    role,
			Games:   games,
			Percent: fmt.Sprintf("%.1f", percent),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Games != shares[j].Games {
			return shares[i].Games > shares[j].Games
		}
		return shares[i].Role < shares[j].Role
	})
	return shares
}

type rolesStage struct{ *deps }

func (s *rolesStage) Name() core.Stage { return core.StageRoles }

func (s *rolesStage) Run(ctx context.Context, sc *Context) (any, error) {
	roster, err := requireCore(core.StageRoles, sc)
	if err != nil {
		return nil, err
	}
	ids := uniqueIDs(roster.SummonerIDs())

	stale, refreshed, err := s.staleIDs(ctx, ids, core.StageRoles, s.freshness.Roles)
	if err != nil {
		return nil, err
	}
	if len(stale) > 0 {
		if err := s.refresh(ctx, sc.Region, stale, refreshed); err != nil {
			return nil, err
		}
	}

	counts, err := s.store.RoleCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	bySummoner := make(map[int64][]core.RoleCount)
	for _, c := range counts {
		bySummoner[c.SummonerID] = append(bySummoner[c.SummonerID], c)
	}

	mixes := []core.RoleMix{}
	for _, p := range roster.Participants() {
		rows, ok := bySummoner[p.SummonerID]
		if !ok {
			continue
		}
		mixes = append(mixes, core.RoleMix{
			ParticipantNo: p.ParticipantNo,
			Roles:         RoleShares(rows),
		})
	}
	return mixes, nil
}

// refresh fetches match lists for stale summoners, only games since the last
// refresh when one is known. Summoners the provider has no list for are
// marked refreshed with no games.
func (s *rolesStage) refresh(ctx context.Context, region string, stale []int64, refreshed map[int64]time.Time) error {
	results := make([]*riot.MatchList, len(stale))
	errs := make([]error, len(stale))

	var g errgroup.Group
	for i, id := range stale {
		g.Go(func() error {
			errs[i] = s.withRetry(ctx, func() error {
				var err error
				results[i], err = s.api.MatchList(ctx, region, id, s.season, refreshed[id])
				return err
			})
			return nil
		})
	}
	_ = g.Wait()

	now := s.clock.Now()
	var done []int64
	for i, id := range stale {
		if errs[i] != nil {
			if code := core.StatusCodeOf(errs[i]); code == http.StatusNotFound || code == http.StatusUnprocessableEntity {
				done = append(done, id)
				continue
			}
			observability.Warn("Match list refresh failed",
				zap.Int64("summoner_id", id),
				zap.Error(errs[i]))
			continue
		}

		refs := matchRefs(results[i])
		inserted, err := s.store.InsertMatches(ctx, id, refs)
		if err != nil {
			return err
		}
		done = append(done, id)
		s.analyze(region, refs)
		observability.Debug("Match list stored",
			zap.Int64("summoner_id", id),
			zap.Int("inserted", inserted))
	}
	return s.store.MarkRefreshed(ctx, done, core.StageRoles, now)
}

// analyze hands the newest games to the analyzer, if any. Detail fetches
// never feed the stage payload.
func (s *rolesStage) analyze(region string, refs []core.MatchRef) {
	if s.analyzer == nil || len(refs) == 0 {
		return
	}
	sorted := make([]core.MatchRef, len(refs))
	copy(sorted, refs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PlayedAt.After(sorted[j].PlayedAt)
	})
	ids := make([]int64, len(sorted))
	for i, ref := range sorted {
		ids[i] = ref.MatchID
	}
	accepted := s.analyzer.Submit(region, ids)
	observability.Debug("Matches queued for analysis",
		zap.Int("submitted", len(ids)),
		zap.Int("accepted", accepted))
}

func matchRefs(list *riot.MatchList) []core.MatchRef {
	if list == nil {
		return nil
	}
	out := make([]core.MatchRef, 0, len(list.Matches))
	for _, m := range list.Matches {
		out = append(out, core.MatchRef{
			MatchID:    m.MatchID,
			ChampionID: m.Champion,
			Lane:       m.Lane,
			Role:       m.Role,
			Queue:      m.Queue,
			Season:     m.Season,
			PlayedAt:   time.UnixMilli(m.Timestamp).UTC(),
		})
	}
	return out
}
