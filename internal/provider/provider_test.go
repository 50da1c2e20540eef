package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapboard/internal/query"
	"github.com/leapstack-labs/leapboard/internal/route"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// fakeFetcher serves dashboards from a map and records requested ids.
type fakeFetcher struct {
	mu         sync.Mutex
	dashboards map[string]*core.Dashboard
	err        error
	calls      []string
	// gates blocks a fetch for an id until the channel is closed.
	gates map[string]chan struct{}
	// started is signalled when a gated fetch begins.
	started chan string
}

func newFakeFetcher(dashboards ...*core.Dashboard) *fakeFetcher {
	f := &fakeFetcher{
		dashboards: make(map[string]*core.Dashboard),
		gates:      make(map[string]chan struct{}),
		started:    make(chan string, 8),
	}
	for _, d := range dashboards {
		f.dashboards[d.ID] = d
	}
	return f
}

func (f *fakeFetcher) GetDashboard(_ context.Context, id string) (*core.Dashboard, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	gate := f.gates[id]
	f.mu.Unlock()

	if gate != nil {
		f.started <- id
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.dashboards[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	return d, nil
}

func (f *fakeFetcher) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[id] = ch
	return ch
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func dashboard(id, title string, layout ...string) *core.Dashboard {
	d := &core.Dashboard{ID: id, Data: core.DashboardData{Title: title}}
	for _, i := range layout {
		d.Data.Layout = append(d.Data.Layout, core.LayoutEntry{I: i})
	}
	return d
}

func newTestProvider(f Fetcher) *Provider {
	cache := query.NewCache[*core.Dashboard](query.Options{})
	return New(route.NewMatcher(), f, cache)
}

func TestProvider_DashboardIDFromRoute(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"dashboard view", "/dashboard/abc123", "abc123"},
		{"widget view", "/dashboard/abc123/widget/w1", "abc123"},
		{"dashboard list", "/dashboard", ""},
		{"trailing segment", "/dashboard/abc123/settings", ""},
		{"other page", "/logs", ""},
		{"root", "/", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(newFakeFetcher())
			state := p.Render(context.Background(), tt.path, false)
			assert.Equal(t, tt.want, state.DashboardID)
			assert.Equal(t, tt.want, p.DashboardID())
		})
	}
}

func TestProvider_EmptyIDNeverFetches(t *testing.T) {
	for _, authenticated := range []bool{true, false} {
		t.Run(fmt.Sprintf("authenticated=%v", authenticated), func(t *testing.T) {
			f := newFakeFetcher(dashboard("", "should not load"))
			p := newTestProvider(f)

			state := p.Render(context.Background(), "/dashboard", authenticated)

			assert.False(t, state.Enabled)
			assert.Nil(t, state.SelectedDashboard)
			assert.True(t, state.DashboardResponse.IsIdle())
			assert.Empty(t, f.Calls())
		})
	}
}

func TestProvider_UnauthenticatedNeverFetches(t *testing.T) {
	f := newFakeFetcher(dashboard("abc123", "T"))
	p := newTestProvider(f)

	state := p.Render(context.Background(), "/dashboard/abc123", false)

	assert.Equal(t, "abc123", state.DashboardID)
	assert.False(t, state.Enabled)
	assert.Nil(t, state.SelectedDashboard)
	assert.Nil(t, p.SelectedDashboard())
	assert.Empty(t, f.Calls())
}

func TestProvider_ResolvesDashboard(t *testing.T) {
	f := newFakeFetcher(dashboard("abc123", "T", core.EmptyWidgetID, "p1"))
	p := newTestProvider(f)

	state := p.Render(context.Background(), "/dashboard/abc123", true)

	assert.True(t, state.Enabled)
	assert.Equal(t, query.Key{Scope: query.DashboardByID, ID: "abc123"}, state.Key)
	require.NotNil(t, state.SelectedDashboard)
	assert.Equal(t, "T", state.SelectedDashboard.Data.Title)
	assert.Equal(t, []core.LayoutEntry{{I: "p1"}}, state.Layouts)
	assert.True(t, state.DashboardResponse.IsSuccess())
	assert.Equal(t, []string{"abc123"}, f.Calls())
}

func TestProvider_WidgetRouteResolvesSameDashboard(t *testing.T) {
	f := newFakeFetcher(dashboard("abc123", "T"))
	p := newTestProvider(f)

	state := p.Render(context.Background(), "/dashboard/abc123/widget/w1", true)

	assert.Equal(t, "abc123", state.DashboardID)
	require.NotNil(t, state.SelectedDashboard)
	assert.Equal(t, "abc123", state.SelectedDashboard.ID)
}

func TestProvider_FiltersPlaceholderKeepingOrder(t *testing.T) {
	f := newFakeFetcher(dashboard("d", "T", "p2", core.EmptyWidgetID, "p1"))
	p := newTestProvider(f)

	p.Render(context.Background(), "/dashboard/d", true)

	assert.Equal(t, []core.LayoutEntry{{I: "p2"}, {I: "p1"}}, p.Layouts())
	// The stored dashboard is kept verbatim.
	assert.Len(t, p.SelectedDashboard().Data.Layout, 3)
}

func TestProvider_ReusesCachedDashboard(t *testing.T) {
	f := newFakeFetcher(dashboard("abc123", "T"))
	p := newTestProvider(f)

	for i := 0; i < 3; i++ {
		p.Render(context.Background(), "/dashboard/abc123", true)
	}
	p.Render(context.Background(), "/dashboard/abc123/widget/w1", true)

	assert.Equal(t, []string{"abc123"}, f.Calls())
}

func TestProvider_SetSelectedDashboardReplacesWholesale(t *testing.T) {
	d1 := dashboard("abc", "first", "p1")
	d1.Data.Description = "kept only on d1"
	f := newFakeFetcher(d1)
	p := newTestProvider(f)
	p.Render(context.Background(), "/dashboard/abc", true)
	require.Same(t, d1, p.SelectedDashboard())

	d2 := &core.Dashboard{ID: "abc", Data: core.DashboardData{Title: "second"}}
	p.SetSelectedDashboard(d2)

	assert.Same(t, d2, p.SelectedDashboard())
	assert.Empty(t, p.SelectedDashboard().Data.Description)

	// A render served from cache keeps the server-echoed value.
	state := p.Render(context.Background(), "/dashboard/abc", true)
	assert.Same(t, d2, state.SelectedDashboard)
}

func TestProvider_SettersAreIndependent(t *testing.T) {
	d1 := dashboard("abc", "first", "p1", "p2")
	p := newTestProvider(newFakeFetcher(d1))
	p.Render(context.Background(), "/dashboard/abc", true)

	edited := []core.LayoutEntry{{I: "p2", X: 4}, {I: "p1"}}
	p.SetLayouts(edited)
	assert.Same(t, d1, p.SelectedDashboard())
	assert.Len(t, d1.Data.Layout, 2)
	assert.Equal(t, "p1", d1.Data.Layout[0].I, "dashboard layout must not change")
	assert.Equal(t, edited, p.Layouts())

	d2 := dashboard("abc", "second", "p9")
	p.SetSelectedDashboard(d2)
	assert.Equal(t, edited, p.Layouts(), "layouts must not follow the dashboard")
}

func TestProvider_SetLayoutsCopiesInput(t *testing.T) {
	p := newTestProvider(newFakeFetcher())
	entries := []core.LayoutEntry{{I: "p1"}}
	p.SetLayouts(entries)
	entries[0].I = "mutated"

	assert.Equal(t, "p1", p.Layouts()[0].I)

	p.SetLayouts(nil)
	assert.NotNil(t, p.Layouts())
	assert.Empty(t, p.Layouts())
}

func TestProvider_KeyChangeClearsPreviousDashboard(t *testing.T) {
	f := newFakeFetcher(dashboard("a", "A", "p1"))
	p := newTestProvider(f)

	p.Render(context.Background(), "/dashboard/a", true)
	require.NotNil(t, p.SelectedDashboard())

	// b does not exist; its fetch fails.
	state := p.Render(context.Background(), "/dashboard/b", true)

	assert.Equal(t, "b", state.DashboardID)
	assert.Nil(t, state.SelectedDashboard, "a must not be exposed under b")
	assert.Empty(t, state.Layouts)
	assert.True(t, state.DashboardResponse.IsError())
	assert.ErrorIs(t, state.DashboardResponse.Err, core.ErrNotFound)
}

func TestProvider_NavigatingAwayClearsState(t *testing.T) {
	p := newTestProvider(newFakeFetcher(dashboard("a", "A", "p1")))
	p.Render(context.Background(), "/dashboard/a", true)

	state := p.Render(context.Background(), "/logs", true)

	assert.Empty(t, state.DashboardID)
	assert.Nil(t, state.SelectedDashboard)
	assert.Empty(t, state.Layouts)
}

func TestProvider_FetchFailureKeepsSelected(t *testing.T) {
	d := dashboard("abc", "T", "p1")
	f := newFakeFetcher(d)
	p := newTestProvider(f)
	p.Render(context.Background(), "/dashboard/abc", true)

	boom := errors.New("backend unavailable")
	f.setErr(boom)
	res := p.Refetch(context.Background())

	assert.True(t, res.IsError())
	assert.ErrorIs(t, res.Err, boom)
	assert.Same(t, d, p.SelectedDashboard())
	assert.Equal(t, []core.LayoutEntry{{I: "p1"}}, p.Layouts())
	assert.Equal(t, res, p.DashboardResponse())
}

func TestProvider_RefetchAppliesNewData(t *testing.T) {
	f := newFakeFetcher(dashboard("abc", "old", "p1"))
	p := newTestProvider(f)
	p.Render(context.Background(), "/dashboard/abc", true)
	p.SetLayouts([]core.LayoutEntry{{I: "local"}})

	f.mu.Lock()
	f.dashboards["abc"] = dashboard("abc", "new", core.EmptyWidgetID, "p2")
	f.mu.Unlock()

	res := p.Refetch(context.Background())

	require.True(t, res.IsSuccess())
	assert.Equal(t, "new", p.SelectedDashboard().Data.Title)
	assert.Equal(t, []core.LayoutEntry{{I: "p2"}}, p.Layouts())
	assert.Equal(t, []string{"abc", "abc"}, f.Calls())
}

func TestProvider_Slider(t *testing.T) {
	p := newTestProvider(newFakeFetcher())
	assert.False(t, p.IsDashboardSliderOpen())

	p.HandleToggleDashboardSlider(true)
	assert.True(t, p.IsDashboardSliderOpen())
	assert.True(t, p.Render(context.Background(), "/dashboard", false).IsDashboardSliderOpen)

	p.HandleToggleDashboardSlider(false)
	assert.False(t, p.IsDashboardSliderOpen())
}

func TestProvider_OnlyLatestKeyApplied(t *testing.T) {
	f := newFakeFetcher(dashboard("a", "A", "pa"), dashboard("b", "B", "pb"))
	releaseA := f.gate("a")
	p := newTestProvider(f)

	done := make(chan State, 1)
	go func() {
		done <- p.Render(context.Background(), "/dashboard/a", true)
	}()
	require.Equal(t, "a", <-f.started)

	stateB := p.Render(context.Background(), "/dashboard/b", true)
	require.NotNil(t, stateB.SelectedDashboard)
	assert.Equal(t, "B", stateB.SelectedDashboard.Data.Title)

	close(releaseA)
	select {
	case stateA := <-done:
		// The late render for a answers for a and never carries b.
		assert.Equal(t, "a", stateA.DashboardID)
		assert.Equal(t, "a", stateA.Key.ID)
		assert.True(t, stateA.DashboardResponse.Superseded)
		require.NotNil(t, stateA.SelectedDashboard)
		assert.Equal(t, "a", stateA.SelectedDashboard.ID)
		assert.Equal(t, "A", stateA.SelectedDashboard.Data.Title)
		assert.Equal(t, []core.LayoutEntry{{I: "pa"}}, stateA.Layouts)
		assert.Equal(t, "a", stateA.DashboardResponse.Data.ID)
	case <-time.After(time.Second):
		t.Fatal("render for a did not return")
	}

	assert.Equal(t, "b", p.DashboardID())
	require.NotNil(t, p.SelectedDashboard())
	assert.Equal(t, "B", p.SelectedDashboard().Data.Title)
	assert.Equal(t, []core.LayoutEntry{{I: "pb"}}, p.Layouts())
}

// stubMatcher matches only the paths it was given.
type stubMatcher map[string]route.Params

func (m stubMatcher) Match(pattern, path string) (route.Params, bool) {
	if pattern != route.DashboardPattern {
		return nil, false
	}
	p, ok := m[path]
	return p, ok
}

func TestProvider_UsesInjectedMatcher(t *testing.T) {
	f := newFakeFetcher(dashboard("xyz", "X"))
	cache := query.NewCache[*core.Dashboard](query.Options{})
	p := New(stubMatcher{"/custom": {route.DashboardIDParam: "xyz"}}, f, cache)

	state := p.Render(context.Background(), "/custom", true)

	assert.Equal(t, "xyz", state.DashboardID)
	require.NotNil(t, state.SelectedDashboard)
	assert.Equal(t, "X", state.SelectedDashboard.Data.Title)

	state = p.Render(context.Background(), "/dashboard/xyz", true)
	assert.Empty(t, state.DashboardID)
}
