// Package route resolves which dashboard a request path refers to.
package route

import (
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Route patterns that name a dashboard, in the order they are checked.
const (
	DashboardPattern       = "/dashboard/{dashboardId}"
	DashboardWidgetPattern = "/dashboard/{dashboardId}/widget/{widgetId}"
)

// Path parameter names bound by the patterns above.
const (
	DashboardIDParam = "dashboardId"
	WidgetIDParam    = "widgetId"
)

// Params holds the path parameters bound by a successful match.
type Params map[string]string

// Matcher matches a path against a single pattern.
type Matcher interface {
	Match(pattern, path string) (Params, bool)
}

// ChiMatcher matches exact paths using chi's routing tree.
// Each pattern gets its own tree, built on first use.
type ChiMatcher struct {
	mu    sync.RWMutex
	trees map[string]*chi.Mux
}

// NewMatcher creates a matcher with the given patterns precompiled.
func NewMatcher(patterns ...string) *ChiMatcher {
	m := &ChiMatcher{trees: make(map[string]*chi.Mux)}
	for _, p := range patterns {
		m.tree(p)
	}
	return m
}

// Match reports whether path matches pattern exactly and returns the bound
// parameters.
func (m *ChiMatcher) Match(pattern, path string) (Params, bool) {
	if path == "" {
		return nil, false
	}

	mux := m.tree(pattern)
	if mux == nil {
		return nil, false
	}

	rctx := chi.NewRouteContext()
	if !mux.Match(rctx, http.MethodGet, path) {
		return nil, false
	}

	params := make(Params, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		params[key] = rctx.URLParams.Values[i]
	}
	return params, true
}

func (m *ChiMatcher) tree(pattern string) *chi.Mux {
	if !strings.HasPrefix(pattern, "/") {
		return nil
	}

	m.mu.RLock()
	mux, ok := m.trees[pattern]
	m.mu.RUnlock()
	if ok {
		return mux
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if mux, ok := m.trees[pattern]; ok {
		return mux
	}
	mux = chi.NewMux()
	mux.Get(pattern, func(http.ResponseWriter, *http.Request) {})
	m.trees[pattern] = mux
	return mux
}

// DashboardID derives the dashboard identifier from path. The dashboard view
// is checked before the widget view. When neither matches it returns "" and
// false.
func DashboardID(m Matcher, path string) (string, bool) {
	for _, pattern := range []string{DashboardPattern, DashboardWidgetPattern} {
		if params, ok := m.Match(pattern, path); ok {
			return params[DashboardIDParam], true
		}
	}
	return "", false
}

// DashboardPath builds the dashboard view path for id.
func DashboardPath(id string) string {
	return "/dashboard/" + id
}

// WidgetPath builds the widget view path inside a dashboard.
func WidgetPath(dashboardID, widgetID string) string {
	return "/dashboard/" + dashboardID + "/widget/" + widgetID
}
