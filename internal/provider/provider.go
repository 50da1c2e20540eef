// Package provider tracks the dashboard a session is currently viewing.
// It derives the dashboard id from the request path, fetches the dashboard
// through a shared query cache and exposes the dashboard, its visible layout
// and the slider flag to the handlers rendering that session.
package provider

import (
	"context"
	"slices"
	"sync"

	"github.com/leapstack-labs/leapboard/internal/query"
	"github.com/leapstack-labs/leapboard/internal/route"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// Fetcher loads a dashboard by id. core.Store satisfies it.
type Fetcher interface {
	GetDashboard(ctx context.Context, id string) (*core.Dashboard, error)
}

// State is a snapshot of a provider taken at the end of Render.
type State struct {
	DashboardID           string
	SelectedDashboard     *core.Dashboard
	Layouts               []core.LayoutEntry
	IsDashboardSliderOpen bool
	DashboardResponse     query.Result[*core.Dashboard]
	// Enabled reports whether the fetch was allowed for this render.
	Enabled bool
	Key     query.Key
}

// Provider holds the dashboard state of a single session.
//
// The selected dashboard and the layout projection are independent: setting
// one never touches the other. Both are replaced when a fetch for the current
// id succeeds and cleared when the id changes.
type Provider struct {
	matcher  route.Matcher
	fetcher  Fetcher
	observer *query.Observer[*core.Dashboard]

	mu          sync.RWMutex
	dashboardID string
	selected    *core.Dashboard
	layouts     []core.LayoutEntry
	sliderOpen  bool
}

// New creates a provider that resolves paths with matcher and loads
// dashboards with fetcher through cache.
func New(matcher route.Matcher, fetcher Fetcher, cache *query.Cache[*core.Dashboard]) *Provider {
	return &Provider{
		matcher:  matcher,
		fetcher:  fetcher,
		observer: query.NewObserver(cache),
		layouts:  []core.LayoutEntry{},
	}
}

// Render runs one pass of the provider for path. The fetch is enabled only
// when path names a dashboard and the caller is authenticated. Render blocks
// until the fetch finishes or ctx is done.
func (p *Provider) Render(ctx context.Context, path string, authenticated bool) State {
	id, matched := route.DashboardID(p.matcher, path)
	key := query.Key{Scope: query.DashboardByID, ID: id}
	enabled := matched && id != "" && authenticated

	res := p.observer.Observe(ctx, key, query.ObserveOptions[*core.Dashboard]{
		Enabled: enabled,
		QueryFn: func(ctx context.Context) (*core.Dashboard, error) {
			return p.fetcher.GetDashboard(ctx, id)
		},
		OnSuccess:   p.applyFetched,
		OnKeyChange: p.resetFor,
	})

	p.mu.RLock()
	defer p.mu.RUnlock()

	// A later Render moved the provider to another id while this one
	// waited. Answer from the result fetched for this path only.
	if res.Superseded || p.dashboardID != id {
		return detachedState(id, key, enabled, p.sliderOpen, res)
	}
	return State{
		DashboardID:           p.dashboardID,
		SelectedDashboard:     p.selected,
		Layouts:               slices.Clone(p.layouts),
		IsDashboardSliderOpen: p.sliderOpen,
		DashboardResponse:     res,
		Enabled:               enabled,
		Key:                   key,
	}
}

func detachedState(id string, key query.Key, enabled, sliderOpen bool, res query.Result[*core.Dashboard]) State {
	state := State{
		DashboardID:           id,
		Layouts:               []core.LayoutEntry{},
		IsDashboardSliderOpen: sliderOpen,
		DashboardResponse:     res,
		Enabled:               enabled,
		Key:                   key,
	}
	if d := res.Data; res.HasData() && d != nil && d.ID == id {
		state.SelectedDashboard = d
		state.Layouts = core.VisibleLayout(d.Data.Layout)
	}
	return state
}

func (p *Provider) applyFetched(d *core.Dashboard) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.selected = d
	if d == nil {
		p.layouts = []core.LayoutEntry{}
		return
	}
	p.layouts = core.VisibleLayout(d.Data.Layout)
}

func (p *Provider) resetFor(_, next query.Key) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.dashboardID = next.ID
	p.selected = nil
	p.layouts = []core.LayoutEntry{}
}

// DashboardID returns the id derived by the last Render, or "" when the path
// did not name a dashboard.
func (p *Provider) DashboardID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dashboardID
}

// SelectedDashboard returns the current dashboard, or nil until a fetch for
// the current id succeeds.
func (p *Provider) SelectedDashboard() *core.Dashboard {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected
}

// SetSelectedDashboard replaces the current dashboard wholesale. Callers pass
// the representation echoed by the server after a mutation, never a local edit.
func (p *Provider) SetSelectedDashboard(d *core.Dashboard) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.selected = d
}

// Layouts returns a copy of the visible layout projection.
func (p *Provider) Layouts() []core.LayoutEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.layouts)
}

// SetLayouts replaces the layout projection.
func (p *Provider) SetLayouts(entries []core.LayoutEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entries == nil {
		entries = []core.LayoutEntry{}
	}
	p.layouts = slices.Clone(entries)
}

// IsDashboardSliderOpen reports the slider flag.
func (p *Provider) IsDashboardSliderOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sliderOpen
}

// HandleToggleDashboardSlider sets the slider flag.
func (p *Provider) HandleToggleDashboardSlider(open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sliderOpen = open
}

// DashboardResponse returns the fetch handle for the current id.
func (p *Provider) DashboardResponse() query.Result[*core.Dashboard] {
	return p.observer.Result()
}

// Refetch forces a fetch of the current id, bypassing freshness.
func (p *Provider) Refetch(ctx context.Context) query.Result[*core.Dashboard] {
	return p.observer.Refetch(ctx)
}
