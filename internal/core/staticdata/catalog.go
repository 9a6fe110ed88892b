// Package staticdata holds the champion catalog and game version shared by
// every session. The catalog is refreshed from the provider on a schedule and
// persisted so a restart without upstream access still has images and names.
package staticdata

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/riftlens/riftlens/internal/core"
	"github.com/riftlens/riftlens/internal/core/riot"
	"github.com/riftlens/riftlens/internal/metrics"
	"github.com/riftlens/riftlens/internal/observability"
)

// ErrNotLoaded is returned when neither the provider nor the store could
// supply a catalog.
var ErrNotLoaded = errors.New("champion catalog not loaded")

// DefaultRefreshTimeout bounds one scheduled refresh.
const DefaultRefreshTimeout = 2 * time.Minute

// Source fetches static data from the provider.
type Source interface {
	StaticChampions(ctx context.Context, region string) (*riot.ChampionList, error)
	Versions(ctx context.Context, region string) ([]string, error)
}

// Store persists the catalog.
type Store interface {
	ReplaceChampions(ctx context.Context, version string, champions []core.Champion, at time.Time) error
	Champions(ctx context.Context) ([]core.Champion, string, error)
}

// Options configures a Catalog.
type Options struct {
	Source Source
	Store  Store
	// Region is used for the static endpoints, which are global but still
	// addressed per region.
	Region string
	Clock  clockwork.Clock
}

// Catalog is a concurrency-safe champion table.
type Catalog struct {
	source Source
	store  Store
	region string
	clock  clockwork.Clock

	mu        sync.RWMutex
	champions map[int64]core.Champion
	version   string
	loadedAt  time.Time
}

// New returns an empty catalog. Call Refresh before use.
func New(opts Options) *Catalog {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Catalog{
		source: opts.Source,
		store:  opts.Store,
		region: opts.Region,
		clock:  clock,
	}
}

// Refresh reloads the catalog from the provider and persists it. When the
// provider is unavailable the stored catalog is used instead.
func (c *Catalog) Refresh(ctx context.Context) error {
	champions, version, fetchErr := c.fetch(ctx)
	if fetchErr == nil {
		now := c.clock.Now()
		if c.store != nil {
			if err := c.store.ReplaceChampions(ctx, version, champions, now); err != nil {
				observability.Warn("Failed to persist champion catalog", zap.Error(err))
			}
		}
		c.set(champions, version, now)
		metrics.RecordCatalogRefresh(true, len(champions))
		observability.Info("Champion catalog refreshed",
			zap.Int("champions", len(champions)),
			zap.String("version", version))
		return nil
	}

	observability.Warn("Champion catalog fetch failed, using stored copy", zap.Error(fetchErr))
	metrics.RecordCatalogRefresh(false, c.Len())
	if c.store == nil {
		return fmt.Errorf("%w: %v", ErrNotLoaded, fetchErr)
	}
	stored, storedVersion, err := c.store.Champions(ctx)
	if err != nil {
		return fmt.Errorf("%w: fetch: %v; store: %v", ErrNotLoaded, fetchErr, err)
	}
	if len(stored) == 0 {
		if c.Loaded() {
			// keep what is already in memory
			return nil
		}
		return fmt.Errorf("%w: %v", ErrNotLoaded, fetchErr)
	}
	c.set(stored, storedVersion, c.clock.Now())
	return nil
}

func (c *Catalog) fetch(ctx context.Context) ([]core.Champion, string, error) {
	if c.source == nil {
		return nil, "", errors.New("no static data source")
	}
	list, err := c.source.StaticChampions(ctx, c.region)
	if err != nil {
		return nil, "", err
	}
	if list == nil || len(list.Data) == 0 {
		return nil, "", errors.New("empty champion list")
	}

	champions := make([]core.Champion, 0, len(list.Data))
	for key, dto := range list.Data {
		id := dto.ID
		if id == 0 {
			// older payloads omit id; with dataById the map key carries it
			if parsed, err := strconv.ParseInt(key, 10, 64); err == nil {
				id = parsed
			}
		}
		champions = append(champions, core.Champion{
			ID:    id,
			Key:   dto.Key,
			Name:  dto.Name,
			Title: dto.Title,
			Image: dto.Image,
		})
	}
	sort.Slice(champions, func(i, j int) bool { return champions[i].ID < champions[j].ID })

	version := list.Version
	if version == "" {
		versions, err := c.source.Versions(ctx, c.region)
		if err == nil && len(versions) > 0 {
			version = versions[0]
		}
	}
	return champions, version, nil
}

func (c *Catalog) set(champions []core.Champion, version string, at time.Time) {
	table := make(map[int64]core.Champion, len(champions))
	for _, champion := range champions {
		table[champion.ID] = champion
	}
	c.mu.Lock()
	c.champions = table
	c.version = version
	c.loadedAt = at
	c.mu.Unlock()
}

// Champion looks up a champion by id.
func (c *Catalog) Champion(id int64) (core.Champion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	champion, ok := c.champions[id]
	return champion, ok
}

// Image returns a copy of the champion's image, or nil when unknown.
func (c *Catalog) Image(id int64) *core.Image {
	champion, ok := c.Champion(id)
	if !ok {
		return nil
	}
	image := champion.Image
	return &image
}

// Version returns the game version the catalog was loaded for.
func (c *Catalog) Version() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Loaded reports whether any catalog is available.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.champions) > 0
}

// Len returns the number of champions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.champions)
}

// LoadedAt returns when the catalog was last replaced.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Schedule registers a periodic refresh on scheduler.
func (c *Catalog) Schedule(scheduler *cron.Cron, spec string) (cron.EntryID, error) {
	if scheduler == nil {
		return 0, errors.New("scheduler is nil")
	}
	id, err := scheduler.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultRefreshTimeout)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			observability.Error("Scheduled champion catalog refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule catalog refresh %q: %w", spec, err)
	}
	return id, nil
}
