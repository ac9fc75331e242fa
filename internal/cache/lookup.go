package cache

import (
	"context"
	"sync"
	"time"

	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
	"bmeutil/internal/metrics"
)

// Loader produces a complete reference set.
type Loader interface {
	Load(ctx context.Context) (*core.ReferenceSet, error)
}

// LookupCache holds the reference set for the lifetime of the process. The
// first Get loads it; later calls return the same set without I/O. Loading
// happens under the mutex, so concurrent first callers wait for one load.
type LookupCache struct {
	mu      sync.Mutex
	loader  Loader
	set     *core.ReferenceSet
	logger  *applog.Logger
	metrics *metrics.Metrics
}

func NewLookupCache(loader Loader, logger *applog.Logger, m *metrics.Metrics) *LookupCache {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LookupCache{
		loader:  loader,
		logger:  logger.WithComponent(applog.ComponentCache),
		metrics: m,
	}
}

// Get returns the cached reference set, loading it on first use. A failed
// load leaves the cache empty so the next call retries.
func (c *LookupCache) Get(ctx context.Context) (*core.ReferenceSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.set != nil {
		c.metrics.CacheHit(metrics.CacheLookup)
		return c.set, nil
	}
	c.metrics.CacheMiss(metrics.CacheLookup)

	start := time.Now()
	set, err := c.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.set = set
	c.logger.InfoContext(ctx, "Lookup cache populated",
		applog.FieldOperation, applog.OpLoad,
		applog.FieldDuration, time.Since(start).Milliseconds(),
	)
	return set, nil
}

// Loaded reports whether a reference set is cached.
func (c *LookupCache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set != nil
}

// Clear drops the cached set; the next Get reloads.
func (c *LookupCache) Clear() {
	c.mu.Lock()
	c.set = nil
	c.mu.Unlock()
}
