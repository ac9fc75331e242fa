package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"bmeutil/internal/metrics"
)

// ResultCache memoizes computed values per key until Clear. Concurrent
// misses for the same key share one build; failed builds are not stored.
// A build that was running when Clear was called returns its value to its
// callers but never stores it.
type ResultCache[T any] struct {
	mu         sync.RWMutex
	items      map[string]T
	generation uint64
	building   map[string]struct{}
	group      singleflight.Group
	metrics    *metrics.Metrics
}

func NewResultCache[T any](m *metrics.Metrics) *ResultCache[T] {
	return &ResultCache[T]{
		items:    make(map[string]T),
		building: make(map[string]struct{}),
		metrics:  m,
	}
}

func (c *ResultCache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *ResultCache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear drops every entry and detaches running builds, so later callers
// start a fresh build instead of joining one that predates the Clear.
func (c *ResultCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]T)
	c.generation++
	for key := range c.building {
		c.group.Forget(key)
	}
	c.building = make(map[string]struct{})
}

// begin marks key as building and returns the generation the build belongs to.
func (c *ResultCache[T]) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.building[key] = struct{}{}
	return c.generation
}

// finish stores v when no Clear happened since begin.
func (c *ResultCache[T]) finish(key string, gen uint64, v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	delete(c.building, key)
	if ok {
		c.items[key] = v
	}
}

// GetOrBuild returns the cached value for key, or runs build once and stores
// its result. hit reports whether the value came from the cache.
func (c *ResultCache[T]) GetOrBuild(key string, build func() (T, error)) (value T, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		c.metrics.CacheHit(metrics.CacheResult)
		return v, true, nil
	}
	c.metrics.CacheMiss(metrics.CacheResult)

	res, err, _ := c.group.Do(key, func() (any, error) {
		// a caller that lost the race to an earlier build may find it stored
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		gen := c.begin(key)
		v, err := build()
		c.finish(key, gen, v, err == nil)
		return v, err
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}
