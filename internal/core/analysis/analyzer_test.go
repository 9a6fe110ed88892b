package analysis

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
)

// gatedAPI blocks every fetch until released.
type gatedAPI struct {
	gate    chan struct{}
	started chan int64
	missing map[int64]bool

	mu    sync.Mutex
	calls []int64
}

func newGatedAPI() *gatedAPI {
	return &gatedAPI{gate: make(chan struct{}), started: make(chan int64, 16), missing: map[int64]bool{}}
}

func (a *gatedAPI) Match(ctx context.Context, region string, matchID int64) (*riot.MatchDetail, error) {
	a.mu.Lock()
	a.calls = append(a.calls, matchID)
	a.mu.Unlock()
	a.started <- matchID

	select {
	case <-a.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if a.missing[matchID] {
		return nil, &core.StatusError{StatusCode: http.StatusNotFound, Label: "match"}
	}
	return &riot.MatchDetail{
		MatchID:      matchID,
		Participants: []riot.MatchParticipant{{ParticipantID: 1, ChampionID: 22}},
		ParticipantIdentities: []riot.ParticipantIdentity{
			{ParticipantID: 1},
		},
	}, nil
}

func (a *gatedAPI) fetched() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.calls...)
}

type memoryStore struct {
	mu      sync.Mutex
	matches map[int64]*core.DetailedMatch
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{matches: map[int64]*core.DetailedMatch{}}
}

func (s *memoryStore) HasDetailedMatch(ctx context.Context, matchID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.matches[matchID]
	return ok, nil
}

func (s *memoryStore) InsertDetailedMatch(ctx context.Context, m *core.DetailedMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.MatchID] = m
	return nil
}

func (s *memoryStore) stored(id int64) (*core.DetailedMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	return m, ok
}

func closeAnalyzer(t *testing.T, a *Analyzer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
}

func TestAnalyzerStoresSubmittedMatches(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newGatedAPI()
	close(api.gate)
	store := newMemoryStore()
	a := New(Options{API: api, Store: store})

	require.Equal(t, 2, a.Submit("euw", []int64{900, 901}))
	require.Eventually(t, func() bool { return a.Pending() == 0 }, 5*time.Second, 5*time.Millisecond)

	m, ok := store.stored(900)
	require.True(t, ok)
	assert.Equal(t, "euw", m.Region)
	assert.Len(t, m.Participants, 1)
	_, ok = store.stored(901)
	assert.True(t, ok)
	closeAnalyzer(t, a)
}

func TestAnalyzerSubmitNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newGatedAPI()
	a := New(Options{API: api, Store: newMemoryStore(), Backlog: 2, MaxPerSubmit: 10})

	require.Equal(t, 1, a.Submit("euw", []int64{1}))
	<-api.started // the worker holds job 1; the backlog is empty again

	done := make(chan int, 1)
	go func() { done <- a.Submit("euw", []int64{2, 3, 4, 5}) }()
	select {
	case accepted := <-done:
		assert.Equal(t, 2, accepted, "the rest is dropped once the backlog is full")
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a busy worker")
	}
	assert.Equal(t, 3, a.Pending())

	close(api.gate)
	require.Eventually(t, func() bool { return a.Pending() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{1, 2, 3}, api.fetched())
	closeAnalyzer(t, a)
}

func TestAnalyzerCapsAndDeduplicatesSubmissions(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newGatedAPI()
	a := New(Options{API: api, Store: newMemoryStore(), MaxPerSubmit: 2})

	assert.Equal(t, 2, a.Submit("euw", []int64{1, 2, 3}))
	assert.Equal(t, 1, a.Submit("euw", []int64{1, 2, 3}), "queued matches are not submitted twice")
	assert.Equal(t, 3, a.Pending())

	close(api.gate)
	require.Eventually(t, func() bool { return a.Pending() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []int64{1, 2, 3}, api.fetched())
	closeAnalyzer(t, a)
}

func TestAnalyzerSkipsStoredAndSurvivesFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newGatedAPI()
	api.missing[7] = true
	close(api.gate)
	store := newMemoryStore()
	store.matches[5] = &core.DetailedMatch{MatchID: 5}
	a := New(Options{API: api, Store: store})

	a.Submit("euw", []int64{5, 7, 8})
	require.Eventually(t, func() bool { return a.Pending() == 0 }, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, []int64{7, 8}, api.fetched(), "stored matches are not fetched again")
	_, ok := store.stored(7)
	assert.False(t, ok)
	_, ok = store.stored(8)
	assert.True(t, ok, "a failed fetch does not stop later jobs")
	closeAnalyzer(t, a)
}

func TestAnalyzerStoreErrorIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newGatedAPI()
	close(api.gate)
	store := newMemoryStore()
	store.err = errors.New("database is locked")
	a := New(Options{API: api, Store: store})

	a.Submit("euw", []int64{1})
	require.Eventually(t, func() bool { return a.Pending() == 0 }, 5*time.Second, 5*time.Millisecond)
	assert.Empty(t, api.fetched())
	closeAnalyzer(t, a)
}

func TestAnalyzerCloseCancelsInFlightFetch(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newGatedAPI()
	a := New(Options{API: api, Store: newMemoryStore()})
	a.Submit("euw", []int64{1, 2})
	<-api.started

	closeAnalyzer(t, a)
	assert.Zero(t, a.Submit("euw", []int64{3}))
	assert.Equal(t, []int64{1}, api.fetched())
	require.NoError(t, a.Close(context.Background()))
}
