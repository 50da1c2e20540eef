// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/metrics"
	"github.com/leapstack-labs/leapboard/internal/provider"
	"github.com/leapstack-labs/leapboard/internal/query"
	"github.com/leapstack-labs/leapboard/internal/route"
	"github.com/leapstack-labs/leapboard/internal/state"
	"github.com/leapstack-labs/leapboard/internal/testutil"
	"github.com/leapstack-labs/leapboard/internal/ui/features/auth"
	"github.com/leapstack-labs/leapboard/internal/ui/features/common"
	"github.com/leapstack-labs/leapboard/internal/ui/notifier"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// TestUser is the user name TestFixture.Login signs in as.
const TestUser = "tester"

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Store        *state.SQLiteStore
	Service      *dashboards.Service
	Cache        *query.Cache[*core.Dashboard]
	Registry     *provider.Registry
	Notifier     *notifier.Notifier
	SessionStore *sessions.CookieStore
	Metrics      *metrics.Metrics

	// Router has the session middleware and the auth routes mounted.
	// Features register their own routes on it.
	Router chi.Router
}

// SetupTestFixture creates an in-memory store, the dashboard service and a
// router ready for feature routes.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)

	store := state.NewSQLiteStore(logger)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })

	m := metrics.New()
	cache := query.NewCache[*core.Dashboard](query.Options{Metrics: m.Query, Logger: logger})
	svc := dashboards.NewService(store, cache, m.Dashboards, logger)
	registry := provider.NewRegistry(route.NewMatcher(), svc, cache,
		provider.WithMetrics(m.Dashboards), provider.WithLogger(logger))

	sessionStore := NewTestSessionStore()
	router := chi.NewRouter()
	router.Use(common.SessionMiddleware(sessionStore))
	auth.SetupRoutes(router, "", registry, logger)

	return &TestFixture{
		Store:        store,
		Service:      svc,
		Cache:        cache,
		Registry:     registry,
		Notifier:     notifier.New(),
		SessionStore: sessionStore,
		Metrics:      m,
		Router:       router,
	}
}

// CreateDashboard stores a dashboard through the service.
func (f *TestFixture) CreateDashboard(t *testing.T, data core.DashboardData) *core.Dashboard {
	t.Helper()
	d, err := f.Service.CreateFrom(context.Background(), data, TestUser)
	require.NoError(t, err)
	return d
}

// Login signs a new session in and returns its cookies.
func (f *TestFixture) Login(t *testing.T) []*http.Cookie {
	t.Helper()
	form := url.Values{"user": {TestUser}, "next": {"/dashboard"}}
	rec := f.Do(httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode())), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	return latestCookies(rec.Result().Cookies())
}

// UpdateCookies returns prev with the cookies set by rec applied on top.
func UpdateCookies(prev []*http.Cookie, rec *httptest.ResponseRecorder) []*http.Cookie {
	return latestCookies(append(slices.Clone(prev), rec.Result().Cookies()...))
}

// latestCookies keeps the last cookie per name. A first visit sets the
// session cookie twice: once on creation and once after sign in.
func latestCookies(cookies []*http.Cookie) []*http.Cookie {
	byName := make(map[string]int)
	var out []*http.Cookie
	for _, c := range cookies {
		if i, ok := byName[c.Name]; ok {
			out[i] = c
			continue
		}
		byName[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

// Do serves r with cookies attached. Form bodies get their content type set.
func (f *TestFixture) Do(r *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	if r.Method == http.MethodPost && r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.Router.ServeHTTP(rec, r)
	return rec
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
