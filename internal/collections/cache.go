package collections

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bleu-ims/ims-gateway/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by Load once the owning view has been torn down.
var ErrClosed = errors.New("collection cache closed")

// Key names one cached collection, usually a catalog kind or an aggregate.
type Key string

// Loader fetches the records stored under a key.
type Loader func(ctx context.Context) (any, error)

// Cache holds the last successfully fetched collection per key for one view.
// Entries only change through Set, Invalidate or a Load that is still current.
type Cache struct {
	mu         sync.RWMutex
	entries    map[Key]any
	generation uint64
	closed     bool

	group   singleflight.Group
	metrics *metrics.Gateway
}

func New(m *metrics.Gateway) *Cache {
	return &Cache{entries: map[Key]any{}, metrics: m}
}

// Get returns the cached records for key.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	records, ok := c.entries[key]
	return records, ok
}

// Set stores records unconditionally. It is a no-op on a closed cache.
func (c *Cache) Set(key Key, records any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.entries[key] = records
}

// SetIfCurrent stores records only when gen is still the cache generation.
// It reports whether the records were kept.
func (c *Cache) SetIfCurrent(gen uint64, key Key, records any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return false
	}
	c.entries[key] = records
	return true
}

// Invalidate drops the given keys. Loads started before the call will not
// repopulate the cache.
func (c *Cache) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for _, key := range keys {
		delete(c.entries, key)
		c.group.Forget(string(key))
	}
}

func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Close empties the cache and expires every in-flight load.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.closed = true
	c.entries = map[Key]any{}
}

func (c *Cache) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Load returns the cached records for key, fetching them on a miss.
// Concurrent misses for the same key share one fetch.
func (c *Cache) Load(ctx context.Context, key Key, load Loader) (any, error) {
	if c.Closed() {
		return nil, ErrClosed
	}
	if records, ok := c.Get(key); ok {
		c.metrics.CacheHit(string(key))
		return records, nil
	}
	c.metrics.CacheMiss(string(key))

	gen := c.Generation()
	records, err, _ := c.group.Do(string(key), func() (any, error) {
		records, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if !c.SetIfCurrent(gen, key, records) {
			c.metrics.StaleDiscard(string(key))
		}
		return records, nil
	})
	return records, err
}

// GetAs returns the cached records for key when they hold a T.
func GetAs[T any](c *Cache, key Key) (T, bool) {
	var zero T
	records, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := records.(T)
	return typed, ok
}

// LoadAs is Load for callers that know the stored type.
func LoadAs[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	records, err := c.Load(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := records.(T)
	if !ok {
		return zero, fmt.Errorf("collection %s holds %T", key, records)
	}
	return typed, nil
}
