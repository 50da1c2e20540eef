package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapboard/internal/metrics"
)

func TestObserver_DisabledNeverFetches(t *testing.T) {
	c, _ := newTestCache(t, newFakeClock())
	o := NewObserver(c)
	var calls atomic.Int32
	var successes int

	res := o.Observe(context.Background(), Key{Scope: DashboardByID, ID: ""}, ObserveOptions[string]{
		Enabled:   false,
		QueryFn:   countingFn("x", &calls),
		OnSuccess: func(string) { successes++ },
	})

	assert.True(t, res.IsIdle())
	assert.False(t, res.HasData())
	assert.Equal(t, int32(0), calls.Load())
	assert.Zero(t, successes)
	assert.Equal(t, 0, c.Len())
}

func TestObserver_OnSuccessOncePerResult(t *testing.T) {
	c, _ := newTestCache(t, newFakeClock())
	o := NewObserver(c)
	key := Key{Scope: DashboardByID, ID: "a"}
	var calls atomic.Int32
	var delivered []string

	opts := ObserveOptions[string]{
		Enabled:   true,
		QueryFn:   countingFn("A", &calls),
		OnSuccess: func(v string) { delivered = append(delivered, v) },
	}

	for i := 0; i < 3; i++ {
		res := o.Observe(context.Background(), key, opts)
		require.True(t, res.IsSuccess())
		assert.Equal(t, "A", res.Data)
	}

	assert.Equal(t, []string{"A"}, delivered)
	assert.Equal(t, int32(1), calls.Load())
}

func TestObserver_CachedResultDeliveredAfterKeyChange(t *testing.T) {
	c, _ := newTestCache(t, newFakeClock())
	o := NewObserver(c)
	var delivered []string
	fn := func(id string) QueryFunc[string] {
		return func(context.Context) (string, error) { return "dash-" + id, nil }
	}
	observe := func(id string) Result[string] {
		return o.Observe(context.Background(), Key{Scope: DashboardByID, ID: id}, ObserveOptions[string]{
			Enabled:   true,
			QueryFn:   fn(id),
			OnSuccess: func(v string) { delivered = append(delivered, v) },
		})
	}

	observe("a")
	observe("b")
	res := observe("a")

	assert.Equal(t, "dash-a", res.Data)
	assert.False(t, res.Fetched, "second visit to a is served from cache")
	assert.Equal(t, []string{"dash-a", "dash-b", "dash-a"}, delivered)
}

func TestObserver_OnKeyChange(t *testing.T) {
	c, _ := newTestCache(t, newFakeClock())
	o := NewObserver(c)

	type change struct{ prev, next Key }
	var changes []change
	opts := ObserveOptions[string]{
		Enabled:     true,
		QueryFn:     func(context.Context) (string, error) { return "v", nil },
		OnKeyChange: func(prev, next Key) { changes = append(changes, change{prev, next}) },
	}

	a := Key{Scope: DashboardByID, ID: "a"}
	b := Key{Scope: DashboardByID, ID: "b"}
	o.Observe(context.Background(), a, opts)
	o.Observe(context.Background(), a, opts)
	o.Observe(context.Background(), b, opts)

	require.Len(t, changes, 2)
	assert.Equal(t, change{Key{}, a}, changes[0])
	assert.Equal(t, change{a, b}, changes[1])
	assert.Equal(t, b, o.Key())
}

func TestObserver_ErrorResult(t *testing.T) {
	c, _ := newTestCache(t, newFakeClock())
	o := NewObserver(c)
	boom := errors.New("boom")
	var successes int

	res := o.Observe(context.Background(), Key{Scope: DashboardByID, ID: "a"}, ObserveOptions[string]{
		Enabled:   true,
		QueryFn:   func(context.Context) (string, error) { return "", boom },
		OnSuccess: func(string) { successes++ },
	})

	assert.True(t, res.IsError())
	assert.ErrorIs(t, res.Err, boom)
	assert.Zero(t, successes)
	assert.Equal(t, res, o.Result())
}

func TestObserver_LatestKeyWins(t *testing.T) {
	m := metrics.NewQueryMetrics(nil)
	c := NewCache[string](Options{Metrics: m})
	o := NewObserver(c)

	releaseA := make(chan struct{})
	startedA := make(chan struct{})

	var mu sync.Mutex
	var delivered []string
	onSuccess := func(v string) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, v)
	}

	done := make(chan Result[string], 1)
	go func() {
		done <- o.Observe(context.Background(), Key{Scope: DashboardByID, ID: "a"}, ObserveOptions[string]{
			Enabled: true,
			QueryFn: func(context.Context) (string, error) {
				close(startedA)
				<-releaseA
				return "A", nil
			},
			OnSuccess: onSuccess,
		})
	}()

	<-startedA
	resB := o.Observe(context.Background(), Key{Scope: DashboardByID, ID: "b"}, ObserveOptions[string]{
		Enabled:   true,
		QueryFn:   func(context.Context) (string, error) { return "B", nil },
		OnSuccess: onSuccess,
	})
	require.Equal(t, "B", resB.Data)

	close(releaseA)
	select {
	case resA := <-done:
		assert.True(t, resA.Superseded)
		assert.Equal(t, "A", resA.Data)
	case <-time.After(time.Second):
		t.Fatal("observe for a did not return")
	}

	assert.Equal(t, "B", o.Result().Data)
	assert.Equal(t, Key{Scope: DashboardByID, ID: "b"}, o.Key())
	mu.Lock()
	assert.Equal(t, []string{"B"}, delivered)
	mu.Unlock()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SupersededTotal))

	// The superseded result is still cached for its own key.
	cached, ok := c.Peek(Key{Scope: DashboardByID, ID: "a"})
	require.True(t, ok)
	assert.Equal(t, "A", cached.Data)
}

func TestObserver_CancelledCallerGoesIdle(t *testing.T) {
	c, _ := newTestCache(t, newFakeClock())
	o := NewObserver(c)
	release := make(chan struct{})
	started := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result[string], 1)
	go func() {
		done <- o.Observe(ctx, Key{Scope: DashboardByID, ID: "a"}, ObserveOptions[string]{
			Enabled: true,
			QueryFn: func(context.Context) (string, error) {
				close(started)
				<-release
				return "A", nil
			},
		})
	}()

	<-started
	assert.True(t, o.Result().IsLoading())
	cancel()
	res := <-done
	assert.True(t, res.IsIdle())

	close(release)
	require.Eventually(t, func() bool {
		r, ok := c.Peek(Key{Scope: DashboardByID, ID: "a"})
		return ok && r.IsSuccess()
	}, time.Second, 5*time.Millisecond)
}

func TestObserver_Refetch(t *testing.T) {
	c, _ := newTestCache(t, newFakeClock())
	o := NewObserver(c)

	assert.Equal(t, Result[string]{}, o.Refetch(context.Background()))

	var n atomic.Int32
	var delivered []string
	opts := ObserveOptions[string]{
		Enabled: true,
		QueryFn: func(context.Context) (string, error) {
			if n.Add(1) == 1 {
				return "v1", nil
			}
			return "v2", nil
		},
		OnSuccess: func(v string) { delivered = append(delivered, v) },
	}

	o.Observe(context.Background(), Key{Scope: DashboardByID, ID: "a"}, opts)
	res := o.Refetch(context.Background())

	assert.Equal(t, "v2", res.Data)
	assert.Equal(t, []string{"v1", "v2"}, delivered)
	assert.Equal(t, int32(2), n.Load())
}
