package query

import (
	"context"
	"errors"
	"sync"
)

// ObserveOptions controls a single Observe call.
type ObserveOptions[T any] struct {
	// Enabled gates the fetch. A disabled observe never calls QueryFn.
	Enabled bool
	QueryFn QueryFunc[T]
	// OnSuccess runs once per distinct successful result for the observed key.
	OnSuccess func(T)
	// OnKeyChange runs when the observed key differs from the previous call,
	// including the first call.
	OnKeyChange func(prev, next Key)
}

// Observer tracks one consumer's view of a Cache. It watches a single key at a
// time; results for a key that is no longer watched are discarded.
//
// Callbacks run while the observer's lock is held and must not call back into
// the observer.
type Observer[T any] struct {
	cache *Cache[T]

	mu        sync.Mutex
	started   bool
	key       Key
	gen       uint64
	opts      ObserveOptions[T]
	result    Result[T]
	delivered uint64
}

// NewObserver creates an observer over cache.
func NewObserver[T any](cache *Cache[T]) *Observer[T] {
	return &Observer[T]{cache: cache}
}

// Observe makes key the observed key and, when enabled, fetches it through the
// cache. It blocks until the fetch completes or ctx is done.
//
// When another Observe changes the key while the fetch runs, the returned
// result is marked Superseded and holds the fetch outcome for key. It is not
// stored as the observer's result and OnSuccess is not called.
func (o *Observer[T]) Observe(ctx context.Context, key Key, opts ObserveOptions[T]) Result[T] {
	o.mu.Lock()
	if !o.started || key != o.key {
		prev := o.key
		o.started = true
		o.key = key
		o.gen++
		o.result = Result[T]{}
		o.delivered = 0
		if opts.OnKeyChange != nil {
			opts.OnKeyChange(prev, key)
		}
	}
	o.opts = opts
	gen := o.gen

	if !opts.Enabled || opts.QueryFn == nil {
		if o.result.Status == StatusLoading {
			o.result.Status = StatusIdle
		}
		r := o.result
		o.mu.Unlock()
		return r
	}

	if !o.result.HasData() {
		o.result.Status = StatusLoading
	}
	o.mu.Unlock()

	res, err := o.cache.Fetch(ctx, key, opts.QueryFn)

	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen {
		o.cache.metrics.SupersededTotal.Inc()
		res.Superseded = true
		return res
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		if o.result.Status == StatusLoading {
			o.result.Status = StatusIdle
		}
		return o.result
	}

	o.result = res
	if res.IsSuccess() && res.version != o.delivered {
		o.delivered = res.version
		if opts.OnSuccess != nil {
			opts.OnSuccess(res.Data)
		}
	}
	return o.result
}

// Refetch invalidates the observed key and observes it again with the last
// options. It returns the zero Result when nothing has been observed yet.
func (o *Observer[T]) Refetch(ctx context.Context) Result[T] {
	o.mu.Lock()
	started, key, opts := o.started, o.key, o.opts
	o.mu.Unlock()

	if !started {
		return Result[T]{}
	}

	o.cache.Invalidate(key)
	return o.Observe(ctx, key, opts)
}

// Result returns the latest result for the observed key.
func (o *Observer[T]) Result() Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Key returns the observed key.
func (o *Observer[T]) Key() Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.key
}
