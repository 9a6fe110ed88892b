package staticdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
)

type fakeSource struct {
	list     *riot.ChampionList
	versions []string
	err      error
	calls    int
}

func (f *fakeSource) StaticChampions(ctx context.Context, region string) (*riot.ChampionList, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeSource) Versions(ctx context.Context, region string) ([]string, error) {
	return f.versions, nil
}

type fakeStore struct {
	champions []core.Champion
	version   string
	saved     int
	err       error
}

func (f *fakeStore) ReplaceChampions(ctx context.Context, version string, champions []core.Champion, at time.Time) error {
	f.saved++
	f.champions = champions
	f.version = version
	return nil
}

func (f *fakeStore) Champions(ctx context.Context) ([]core.Champion, string, error) {
	return f.champions, f.version, f.err
}

func championList() *riot.ChampionList {
	return &riot.ChampionList{
		Type: "champion",
		Data: map[string]riot.ChampionDTO{
			"22": {ID: 22, Key: "Ashe", Name: "Ashe", Title: "the Frost Archer", Image: core.Image{Full: "Ashe.png"}},
			"51": {Key: "Caitlyn", Name: "Caitlyn", Image: core.Image{Full: "Caitlyn.png"}},
		},
	}
}

func TestRefreshFromSource(t *testing.T) {
	source := &fakeSource{list: championList(), versions: []string{"6.2.1", "6.1.1"}}
	store := &fakeStore{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	catalog := New(Options{Source: source, Store: store, Region: "euw", Clock: clock})

	require.False(t, catalog.Loaded())
	require.NoError(t, catalog.Refresh(context.Background()))

	assert.True(t, catalog.Loaded())
	assert.Equal(t, 2, catalog.Len())
	assert.Equal(t, "6.2.1", catalog.Version())
	assert.Equal(t, clock.Now(), catalog.LoadedAt())

	ashe, ok := catalog.Champion(22)
	require.True(t, ok)
	assert.Equal(t, "Ashe", ashe.Name)

	caitlyn, ok := catalog.Champion(51)
	require.True(t, ok, "id should fall back to the map key")
	assert.Equal(t, "Caitlyn", caitlyn.Name)

	image := catalog.Image(22)
	require.NotNil(t, image)
	assert.Equal(t, "Ashe.png", image.Full)
	assert.Nil(t, catalog.Image(999))

	assert.Equal(t, 1, store.saved)
	assert.Equal(t, "6.2.1", store.version)
	assert.Len(t, store.champions, 2)
}

func TestRefreshFallsBackToStore(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream down")}
	store := &fakeStore{
		champions: []core.Champion{{ID: 1, Key: "Annie", Name: "Annie"}},
		version:   "6.1.1",
	}
	catalog := New(Options{Source: source, Store: store, Region: "euw"})

	require.NoError(t, catalog.Refresh(context.Background()))
	assert.True(t, catalog.Loaded())
	assert.Equal(t, "6.1.1", catalog.Version())
	assert.Zero(t, store.saved)
}

func TestRefreshWithNothingAvailable(t *testing.T) {
	catalog := New(Options{Source: &fakeSource{err: errors.New("down")}, Store: &fakeStore{}, Region: "euw"})

	err := catalog.Refresh(context.Background())
	require.ErrorIs(t, err, ErrNotLoaded)
	assert.False(t, catalog.Loaded())
}

func TestRefreshKeepsLoadedCatalogWhenStoreEmpty(t *testing.T) {
	source := &fakeSource{list: championList()}
	catalog := New(Options{Source: source, Region: "euw"})
	require.NoError(t, catalog.Refresh(context.Background()))

	catalog.source = &fakeSource{err: errors.New("down")}
	catalog.store = &fakeStore{}
	require.NoError(t, catalog.Refresh(context.Background()))
	assert.Equal(t, 2, catalog.Len())
}

func TestSchedule(t *testing.T) {
	catalog := New(Options{Source: &fakeSource{list: championList()}, Region: "euw"})
	scheduler := cron.New()

	id, err := catalog.Schedule(scheduler, "@every 6h")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, scheduler.Entries(), 1)

	_, err = catalog.Schedule(scheduler, "not a spec")
	require.Error(t, err)

	_, err = catalog.Schedule(nil, "@every 1h")
	require.Error(t, err)
}
