// Package contracts caches the provider's contract list behind a refresh window.
package contracts

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rewired-gh/velofeed/internal/logger"
	"github.com/rewired-gh/velofeed/internal/models"
)

// RefreshWindow is how long a fetched contract list is served before refetching.
const RefreshWindow = time.Hour

// FetchFunc retrieves the raw contract list from upstream.
type FetchFunc func(ctx context.Context) ([]models.City, error)

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache fronts FetchFunc. Readers always get a deep copy of the current batch,
// and at most one upstream fetch is in flight per Cache.
type Cache struct {
	fetch FetchFunc
	now   func() time.Time

	mu        sync.RWMutex
	cities    []models.City
	byName    map[string]int
	fetchedAt time.Time
	loaded    bool

	flight singleflight.Group
}

// New creates a Cache around fetch.
func New(fetch FetchFunc, opts ...Option) *Cache {
	c := &Cache{
		fetch: fetch,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListCities returns every contract, refetching when the batch is older than
// the refresh window. When a refresh fails and an earlier batch exists the
// earlier batch is returned; without one the error is returned.
func (c *Cache) ListCities(ctx context.Context) ([]models.City, error) {
	if cities, ok := c.fresh(); ok {
		return cities, nil
	}

	ch := c.flight.DoChan("contracts", func() (interface{}, error) {
		// another flight may have finished between fresh() and here
		if cities, ok := c.fresh(); ok {
			return cities, nil
		}
		return c.refresh(context.WithoutCancel(ctx))
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		if stale, ok := c.snapshot(); ok {
			logger.Warn("Contract refresh failed, serving cached list from %v: %v", c.fetchedAtTime(), res.Err)
			return stale, nil
		}
		return nil, res.Err
	}
	// shared results must not alias between callers
	return models.CloneCities(res.Val.([]models.City)), nil
}

// GetCity looks up one contract by identifier. A missing city is reported
// through the bool, not as an error.
func (c *Cache) GetCity(ctx context.Context, name string) (models.City, bool, error) {
	if _, err := c.ListCities(ctx); err != nil {
		return models.City{}, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byName[name]
	if !ok {
		return models.City{}, false, nil
	}
	return c.cities[i].Clone(), true, nil
}

func (c *Cache) refresh(ctx context.Context) ([]models.City, error) {
	logger.Debug("Fetching contract list from upstream")
	cities, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	cities = models.CloneCities(cities)
	ApplyOverrides(cities)

	byName := make(map[string]int, len(cities))
	for i, city := range cities {
		byName[city.Name] = i
	}

	c.mu.Lock()
	c.cities = cities
	c.byName = byName
	c.fetchedAt = c.now()
	c.loaded = true
	c.mu.Unlock()

	logger.Info("Loaded %d contracts", len(cities))
	return models.CloneCities(cities), nil
}

func (c *Cache) fresh() ([]models.City, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || c.now().Sub(c.fetchedAt) >= RefreshWindow {
		return nil, false
	}
	return models.CloneCities(c.cities), true
}

func (c *Cache) snapshot() ([]models.City, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return nil, false
	}
	return models.CloneCities(c.cities), true
}

func (c *Cache) fetchedAtTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}
