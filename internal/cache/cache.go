// Package cache is a read-through cache whose entries are invalidated in bulk
// by tag.
//
// Invalidation stamps each tag with the value of a monotonic clock. An entry
// remembers the clock value observed before its loader ran and is served only
// while none of its tags has been stamped later. Tags added by the loader are
// covered too, since the comparison happens at lookup time.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/garnizeh/prep/internal/metrics"
)

// maxTrackedTags bounds the tag stamp table. Reaching it drops every entry
// and starts a new epoch.
const maxTrackedTags = 1 << 16

type Config struct {
	// MaxEntries of 0 disables caching; Fetch then always calls the loader.
	MaxEntries int64
	TTL        time.Duration
	Metrics    *metrics.Metrics
}

type entry struct {
	value any
	tags  []Tag
	at    uint64
}

type Cache struct {
	store   *ristretto.Cache[string, entry]
	ttl     time.Duration
	metrics *metrics.Metrics

	mu    sync.RWMutex
	clock uint64
	floor uint64
	stamp map[Tag]uint64
}

func New(cfg Config) (*Cache, error) {
	c := &Cache{
		ttl:     cfg.TTL,
		metrics: cfg.Metrics,
		stamp:   make(map[Tag]uint64),
	}
	if cfg.MaxEntries <= 0 {
		return c, nil
	}

	store, err := ristretto.NewCache(&ristretto.Config[string, entry]{
		NumCounters:        cfg.MaxEntries * 10,
		MaxCost:            cfg.MaxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}
	c.store = store
	return c, nil
}

// Enabled reports whether entries are stored at all.
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

// Tagger collects tags discovered while loading a value.
type Tagger struct {
	tags []Tag
}

func (t *Tagger) Add(tags ...Tag) {
	if t != nil {
		t.tags = append(t.tags, tags...)
	}
}

// Fetch returns the cached value for key if none of its tags were invalidated
// since it was loaded. Otherwise it calls load, caches the result (including
// nil results) and returns it. Errors are never cached.
func Fetch[T any](ctx context.Context, c *Cache, key string, tags []Tag, load func(ctx context.Context, tg *Tagger) (T, error)) (T, error) {
	if !c.Enabled() {
		return load(ctx, &Tagger{})
	}

	if e, ok := c.lookup(key); ok {
		if v, ok := e.value.(T); ok {
			c.metrics.CacheHit()
			return v, nil
		}
	}
	c.metrics.CacheMiss()

	at := c.now()
	tg := &Tagger{tags: append([]Tag(nil), tags...)}
	v, err := load(ctx, tg)
	if err != nil {
		var zero T
		return zero, err
	}

	c.store.SetWithTTL(key, entry{value: v, tags: tg.tags, at: at}, 1, c.ttl)
	return v, nil
}

func (c *Cache) lookup(key string) (entry, bool) {
	e, ok := c.store.Get(key)
	if !ok {
		return entry{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if e.at < c.floor {
		return entry{}, false
	}
	for _, t := range e.tags {
		if c.stamp[t] > e.at {
			return entry{}, false
		}
	}
	return e, true
}

func (c *Cache) now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clock
}

// Invalidate marks every entry carrying any of tags as stale.
func (c *Cache) Invalidate(tags ...Tag) {
	if !c.Enabled() || len(tags) == 0 {
		return
	}

	c.mu.Lock()
	c.clock++
	if len(c.stamp)+len(tags) > maxTrackedTags {
		c.stamp = make(map[Tag]uint64)
		c.floor = c.clock
		c.store.Clear()
	} else {
		for _, t := range tags {
			c.stamp[t] = c.clock
		}
	}
	c.mu.Unlock()

	c.metrics.CacheInvalidated(len(tags))
}

// Wait blocks until buffered writes are applied to the store.
func (c *Cache) Wait() {
	if c.Enabled() {
		c.store.Wait()
	}
}

func (c *Cache) Close() {
	if c.Enabled() {
		c.store.Close()
	}
}
