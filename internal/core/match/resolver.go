// Package match resolves viewer requests to a live match.
package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/core/session"
	"github.com/riftlens/riftlens/internal/observability"
)

var (
	// ErrSummonerNotFound is returned when the player name is unknown.
	ErrSummonerNotFound = errors.New("no summoner by that name")
	// ErrNoActiveGame is returned when the player is not in a game, or no
	// featured game could be resolved.
	ErrNoActiveGame = errors.New("summoner is not currently in a game")
)

// API is the subset of provider endpoints used for resolution.
type API interface {
	SummonerByName(ctx context.Context, region, name string) (*riot.Summoner, error)
	CurrentGame(ctx context.Context, region string, summonerID int64) (*riot.CurrentGame, error)
	FeaturedGames(ctx context.Context, region string) (*riot.FeaturedGames, error)
}

// Resolver turns a player name or a region into a live match.
type Resolver struct {
	api           API
	defaultRegion string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver returns a resolver. A nil rng uses a randomly seeded source.
func NewResolver(api API, defaultRegion string, rng *rand.Rand) *Resolver {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Resolver{
		api:           api,
		defaultRegion: strings.ToLower(strings.TrimSpace(defaultRegion)),
		rng:           rng,
	}
}

// NormalizeRegion lower-cases region and applies the default when empty.
func (r *Resolver) NormalizeRegion(region string) string {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		return r.defaultRegion
	}
	return region
}

// ResolveByPlayer finds the live match of the named player.
func (r *Resolver) ResolveByPlayer(ctx context.Context, name, region string) (*session.Match, error) {
	region = r.NormalizeRegion(region)
	if _, ok := riot.Platform(region); !ok {
		return nil, fmt.Errorf("%w: %q", riot.ErrUnknownRegion, region)
	}
	if riot.NormalizeName(name) == "" {
		return nil, ErrSummonerNotFound
	}

	summoner, err := r.api.SummonerByName(ctx, region, name)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrSummonerNotFound
		}
		return nil, err
	}

	game, err := r.api.CurrentGame(ctx, region, summoner.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrNoActiveGame
		}
		return nil, err
	}
	return &session.Match{ID: game.GameID, Region: region, Game: game}, nil
}

// ResolveAny picks a random featured game in region and resolves it through
// the first participant whose name resolves to the same live game.
func (r *Resolver) ResolveAny(ctx context.Context, region string) (*session.Match, error) {
	region = r.NormalizeRegion(region)
	featured, err := r.api.FeaturedGames(ctx, region)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrNoActiveGame
		}
		return nil, err
	}
	if featured == nil || len(featured.GameList) == 0 {
		return nil, ErrNoActiveGame
	}

	game := featured.GameList[r.pick(len(featured.GameList))]
	for _, p := range game.Participants {
		if p.Bot || p.SummonerName == "" {
			continue
		}
		m, err := r.ResolveByPlayer(ctx, p.SummonerName, region)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, ErrSummonerNotFound) && !errors.Is(err, ErrNoActiveGame) {
			return nil, err
		}
		observability.Debug("Featured participant did not resolve",
			zap.Int64("game_id", game.GameID),
			zap.Error(err))
	}
	return nil, ErrNoActiveGame
}

func (r *Resolver) pick(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}
