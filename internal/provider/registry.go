package provider

import (
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/leapboard/internal/metrics"
	"github.com/leapstack-labs/leapboard/internal/query"
	"github.com/leapstack-labs/leapboard/internal/route"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

type view struct {
	provider *Provider
	lastSeen time.Time
}

// Registry maps a session and one of its views to a provider. Every page a
// session opens gets its own view id, so two tabs on different dashboards
// never share dashboard state. All providers share one cache, so a dashboard
// fetched for one view is reused by the others.
type Registry struct {
	matcher route.Matcher
	fetcher Fetcher
	cache   *query.Cache[*core.Dashboard]
	metrics *metrics.DashboardMetrics
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]map[string]*view
	views    int
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMetrics sets the metrics updated with the session count.
func WithMetrics(m *metrics.DashboardMetrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithClock overrides the clock used for idle tracking.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(matcher route.Matcher, fetcher Fetcher, cache *query.Cache[*core.Dashboard], opts ...RegistryOption) *Registry {
	r := &Registry{
		matcher:  matcher,
		fetcher:  fetcher,
		cache:    cache,
		now:      time.Now,
		sessions: make(map[string]map[string]*view),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.NewDashboardMetrics(nil)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// Get returns the provider for the view viewID of sessionID, creating it on
// first use.
func (r *Registry) Get(sessionID, viewID string) *Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	views, ok := r.sessions[sessionID]
	if !ok {
		views = make(map[string]*view)
		r.sessions[sessionID] = views
	}
	v, ok := views[viewID]
	if !ok {
		v = &view{provider: New(r.matcher, r.fetcher, r.cache)}
		views[viewID] = v
		r.views++
		r.updateGaugesLocked()
		r.logger.Debug("provider created", slog.String("session", sessionID), slog.String("view", viewID))
	}
	v.lastSeen = r.now()
	return v.provider
}

// Release drops every provider of sessionID.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	views, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	r.views -= len(views)
	r.updateGaugesLocked()
}

// Sweep drops providers not used for maxIdle and returns how many were dropped.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	n := 0
	for sid, views := range r.sessions {
		for vid, v := range views {
			if v.lastSeen.Before(cutoff) {
				delete(views, vid)
				n++
			}
		}
		if len(views) == 0 {
			delete(r.sessions, sid)
		}
	}
	if n > 0 {
		r.views -= n
		r.updateGaugesLocked()
		r.logger.Debug("swept idle providers", slog.Int("count", n))
	}
	return n
}

// Len returns the number of live providers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views
}

func (r *Registry) updateGaugesLocked() {
	r.metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.metrics.ActiveViews.Set(float64(r.views))
}
