// Package query implements a keyed fetch cache: fresh entries are reused,
// concurrent fetches for one key are collapsed into a single call, and
// observers discard results for keys they no longer watch.
package query

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/leapboard/internal/metrics"
)

// Defaults applied by NewCache for zero-valued options.
const (
	DefaultStaleTime    = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxEntries   = 256
)

// Options configures a Cache.
type Options struct {
	// StaleTime is how long a successful result is served without refetching.
	// A negative value makes every entry stale immediately.
	StaleTime time.Duration
	// FetchTimeout bounds a single fetch. Fetches run detached from the
	// caller's cancellation so other waiters on the same key are unaffected.
	FetchTimeout time.Duration
	// MaxEntries bounds the number of keys kept; least recently used keys are evicted.
	MaxEntries int
	Metrics    *metrics.QueryMetrics
	Logger     *slog.Logger
	// Now is the clock used for freshness. Defaults to time.Now.
	Now func() time.Time
}

type entry[T any] struct {
	data        T
	err         error
	hasData     bool
	updatedAt   time.Time
	version     uint64
	invalidated bool
}

func (e *entry[T]) result() Result[T] {
	r := Result[T]{
		Data:      e.data,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		version:   e.version,
	}
	switch {
	case e.err != nil:
		r.Status = StatusError
	case e.hasData:
		r.Status = StatusSuccess
	default:
		r.Status = StatusIdle
	}
	return r
}

// Cache stores the latest result per Key.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[Key]*entry[T]
	order   []Key // LRU order, most recent at end
	version uint64
	group   singleflight.Group
	opts    Options
	metrics *metrics.QueryMetrics
	logger  *slog.Logger
}

// NewCache creates a cache, filling unset options with defaults.
func NewCache[T any](opts Options) *Cache[T] {
	if opts.StaleTime == 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewQueryMetrics(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &Cache[T]{
		entries: make(map[Key]*entry[T]),
		opts:    opts,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Fetch returns the cached result for key when it is fresh, otherwise it runs
// fn. Concurrent callers for the same key share one execution of fn. When ctx
// is cancelled Fetch returns ctx.Err() while the shared fetch keeps running.
func (c *Cache[T]) Fetch(ctx context.Context, key Key, fn QueryFunc[T]) (Result[T], error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.isFreshLocked(e) {
		c.touchLocked(key)
		res := e.result()
		c.mu.Unlock()
		c.metrics.HitsTotal.Inc()
		return res, nil
	}
	c.mu.Unlock()
	c.metrics.MissesTotal.Inc()

	ch := c.group.DoChan(key.Scope+"\x00"+key.ID, func() (any, error) {
		return c.run(ctx, key, fn)
	})

	select {
	case <-ctx.Done():
		return Result[T]{Status: StatusLoading}, ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(Result[T])
		res.Fetched = true
		return res, r.Err
	}
}

func (c *Cache[T]) run(ctx context.Context, key Key, fn QueryFunc[T]) (Result[T], error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
	defer cancel()

	c.metrics.FetchesTotal.Inc()
	start := time.Now()
	data, err := fn(fctx)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	if err != nil {
		c.metrics.FetchErrorsTotal.Inc()
		c.logger.Debug("fetch failed", slog.String("key", key.String()), slog.String("error", err.Error()))
		e.err = err
		return e.result(), err
	}

	c.storeLocked(e, data)
	return e.result(), nil
}

// Peek returns the current entry for key without fetching, fresh or not.
func (c *Cache[T]) Peek(key Key) (Result[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Result[T]{}, false
	}
	return e.result(), true
}

// Set stores data for key as a fresh successful result. Mutations use it to
// publish the representation echoed by the server.
func (c *Cache[T]) Set(key Key, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.storeLocked(c.entryLocked(key), data)
}

// Invalidate marks key stale so the next Fetch runs the query function.
func (c *Cache[T]) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.invalidated = true
	}
}

// InvalidateScope marks every key in scope stale.
func (c *Cache[T]) InvalidateScope(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if k.Scope == scope {
			e.invalidated = true
		}
	}
}

// Remove drops key from the cache.
func (c *Cache[T]) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.removeLRULocked(key)
	c.metrics.Entries.Set(float64(len(c.entries)))
}

// Len returns the number of cached keys.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[T]) isFreshLocked(e *entry[T]) bool {
	if !e.hasData || e.err != nil || e.invalidated || c.opts.StaleTime < 0 {
		return false
	}
	return c.opts.Now().Sub(e.updatedAt) < c.opts.StaleTime
}

func (c *Cache[T]) storeLocked(e *entry[T], data T) {
	c.version++
	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = c.opts.Now()
	e.version = c.version
	e.invalidated = false
}

// entryLocked returns the entry for key, creating it and evicting the least
// recently used key when the cache is full (caller must hold lock).
func (c *Cache[T]) entryLocked(key Key) *entry[T] {
	e, ok := c.entries[key]
	if !ok {
		if len(c.entries) >= c.opts.MaxEntries {
			c.evictOldestLocked()
		}
		e = &entry[T]{}
		c.entries[key] = e
		c.metrics.Entries.Set(float64(len(c.entries)))
	}
	c.touchLocked(key)
	return e
}

// touchLocked moves key to the end of the LRU order (caller must hold lock).
func (c *Cache[T]) touchLocked(key Key) {
	c.removeLRULocked(key)
	c.order = append(c.order, key)
}

// removeLRULocked removes key from the LRU order (caller must hold lock).
func (c *Cache[T]) removeLRULocked(key Key) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evictOldestLocked removes the least recently used entry (caller must hold lock).
func (c *Cache[T]) evictOldestLocked() {
	if len(c.order) == 0 {
		return
	}

	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
	c.metrics.EvictionsTotal.Inc()
}
