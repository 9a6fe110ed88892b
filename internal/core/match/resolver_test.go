package match

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
)

type stubAPI struct {
	summoners map[string]*riot.Summoner
	games     map[int64]*riot.CurrentGame
	featured  *riot.FeaturedGames
	err       error
	regions   []string
}

func notFound() error { return &core.StatusError{StatusCode: http.StatusNotFound} }

func (s *stubAPI) SummonerByName(ctx context.Context, region, name string) (*riot.Summoner, error) {
	s.regions = append(s.regions, region)
	if s.err != nil {
		return nil, s.err
	}
	if summoner, ok := s.summoners[riot.NormalizeName(name)]; ok {
		return summoner, nil
	}
	return nil, notFound()
}

func (s *stubAPI) CurrentGame(ctx context.Context, region string, id int64) (*riot.CurrentGame, error) {
	if game, ok := s.games[id]; ok {
		return game, nil
	}
	return nil, notFound()
}

func (s *stubAPI) FeaturedGames(ctx context.Context, region string) (*riot.FeaturedGames, error) {
	if s.featured == nil {
		return nil, notFound()
	}
	return s.featured, nil
}

func newStub() *stubAPI {
	return &stubAPI{
		summoners: map[string]*riot.Summoner{
			"faker":  {ID: 1, Name: "Faker"},
			"idle":   {ID: 2, Name: "Idle"},
			"player": {ID: 3, Name: "Player"},
		},
		games: map[int64]*riot.CurrentGame{
			1: {GameID: 100},
			3: {GameID: 300},
		},
	}
}

func TestResolveByPlayer(t *testing.T) {
	ctx := context.Background()
	api := newStub()
	r := NewResolver(api, "euw", rand.New(rand.NewPCG(1, 2)))

	m, err := r.ResolveByPlayer(ctx, " Fa ker ", "")
	require.NoError(t, err)
	assert.Equal(t, int64(100), m.ID)
	assert.Equal(t, "euw", m.Region)
	require.NotNil(t, m.Game)

	_, err = r.ResolveByPlayer(ctx, "faker", "NA")
	require.NoError(t, err)
	assert.Equal(t, "na", api.regions[len(api.regions)-1])

	_, err = r.ResolveByPlayer(ctx, "nobody", "euw")
	assert.ErrorIs(t, err, ErrSummonerNotFound)

	_, err = r.ResolveByPlayer(ctx, "idle", "euw")
	assert.ErrorIs(t, err, ErrNoActiveGame)

	_, err = r.ResolveByPlayer(ctx, "faker", "atlantis")
	assert.ErrorIs(t, err, riot.ErrUnknownRegion)

	_, err = r.ResolveByPlayer(ctx, "   ", "euw")
	assert.ErrorIs(t, err, ErrSummonerNotFound)
}

func TestResolveByPlayerPassesTransportErrors(t *testing.T) {
	api := newStub()
	api.err = &core.TransportError{Err: errors.New("reset")}
	r := NewResolver(api, "euw", nil)

	_, err := r.ResolveByPlayer(context.Background(), "faker", "euw")
	var transportErr *core.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestResolveAny(t *testing.T) {
	ctx := context.Background()
	api := newStub()
	api.featured = &riot.FeaturedGames{GameList: []riot.FeaturedGame{
		{GameID: 300, Participants: []riot.FeaturedParticipant{
			{SummonerName: "bot", Bot: true},
			{SummonerName: "nobody"},
			{SummonerName: "player"},
		}},
	}}
	r := NewResolver(api, "euw", rand.New(rand.NewPCG(1, 2)))

	m, err := r.ResolveAny(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(300), m.ID)
}

func TestResolveAnyWithoutGames(t *testing.T) {
	ctx := context.Background()
	api := newStub()
	r := NewResolver(api, "euw", nil)

	_, err := r.ResolveAny(ctx, "euw")
	assert.ErrorIs(t, err, ErrNoActiveGame)

	api.featured = &riot.FeaturedGames{}
	_, err = r.ResolveAny(ctx, "euw")
	assert.ErrorIs(t, err, ErrNoActiveGame)

	api.featured = &riot.FeaturedGames{GameList: []riot.FeaturedGame{
		{Participants: []riot.FeaturedParticipant{{SummonerName: "idle"}}},
	}}
	_, err = r.ResolveAny(ctx, "euw")
	assert.ErrorIs(t, err, ErrNoActiveGame)
}

func TestResolveAnyPicksWithRng(t *testing.T) {
	api := newStub()
	api.featured = &riot.FeaturedGames{GameList: []riot.FeaturedGame{
		{Participants: []riot.FeaturedParticipant{{SummonerName: "faker"}}},
		{Participants: []riot.FeaturedParticipant{{SummonerName: "player"}}},
	}}

	seen := map[int64]bool{}
	r := NewResolver(api, "euw", rand.New(rand.NewPCG(7, 7)))
	for range 50 {
		m, err := r.ResolveAny(context.Background(), "euw")
		require.NoError(t, err)
		seen[m.ID] = true
	}
	assert.Len(t, seen, 2)
}
