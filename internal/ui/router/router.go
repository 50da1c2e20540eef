// Package router sets up HTTP routes for the UI server.
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/leapboard/internal/api"
	dashboardsvc "github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/metrics"
	"github.com/leapstack-labs/leapboard/internal/provider"
	authFeature "github.com/leapstack-labs/leapboard/internal/ui/features/auth"
	"github.com/leapstack-labs/leapboard/internal/ui/features/common"
	dashboardsFeature "github.com/leapstack-labs/leapboard/internal/ui/features/dashboards"
	onboardingFeature "github.com/leapstack-labs/leapboard/internal/ui/features/onboarding"
	"github.com/leapstack-labs/leapboard/internal/ui/notifier"
	"github.com/leapstack-labs/leapboard/internal/ui/resources"
)

// Config holds everything the routes need.
type Config struct {
	Service       *dashboardsvc.Service
	Registry      *provider.Registry
	Notifier      *notifier.Notifier
	Sessions      sessions.Store
	Metrics       *metrics.Metrics
	Password      string
	// APIToken guards /api/v1. Empty falls back to Password.
	APIToken      string
	TitleDebounce time.Duration
	Logger        *slog.Logger
}

// SetupRoutes configures all routes for the UI server. The returned function
// stops pending background work of the handlers.
func SetupRoutes(router chi.Router, cfg Config) (stop func()) {
	// Static assets
	router.Handle("/static/*", resources.Handler())

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler())
	}

	apiToken := cfg.APIToken
	if apiToken == "" {
		apiToken = cfg.Password
	}
	api.SetupRoutes(router, cfg.Service, apiToken, cfg.Logger, cfg.Notifier.BroadcastAll)

	var dashboards *dashboardsFeature.Handlers
	router.Group(func(r chi.Router) {
		r.Use(common.SessionMiddleware(cfg.Sessions))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			common.SeeOther(w, r, "/dashboard")
		})

		authFeature.SetupRoutes(r, cfg.Password, cfg.Registry, cfg.Logger)
		dashboards = dashboardsFeature.SetupRoutes(r, dashboardsFeature.Config{
			Service:       cfg.Service,
			Registry:      cfg.Registry,
			Notifier:      cfg.Notifier,
			Logger:        cfg.Logger,
			TitleDebounce: cfg.TitleDebounce,
		})
		onboardingFeature.SetupRoutes(r, cfg.Logger)
	})

	return dashboards.Stop
}
