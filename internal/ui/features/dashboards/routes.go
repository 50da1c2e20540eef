// Package dashboards provides the dashboard list and dashboard view pages.
package dashboards

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	dashboardsvc "github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/provider"
	"github.com/leapstack-labs/leapboard/internal/ui/features/common"
	"github.com/leapstack-labs/leapboard/internal/ui/notifier"
)

// Config holds the dependencies of the dashboard feature.
type Config struct {
	Service       *dashboardsvc.Service
	Registry      *provider.Registry
	Notifier      *notifier.Notifier
	Logger        *slog.Logger
	TitleDebounce time.Duration
}

// SetupRoutes registers the dashboard feature routes and returns the
// handlers so the caller can stop pending title saves on shutdown.
func SetupRoutes(router chi.Router, cfg Config) *Handlers {
	h := NewHandlers(cfg)

	router.Route("/dashboard", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(common.RequireAuth)
			r.Get("/", h.ListPage)
			r.Get("/search", h.SearchSSE)
			r.Post("/", h.Create)
			r.Post("/import", h.Import)
			r.Post("/{dashboardId}/delete", h.Delete)
			r.Post("/{dashboardId}/title", h.UpdateTitle)
			r.Post("/{dashboardId}/layout", h.UpdateLayout)
			r.Post("/{dashboardId}/slider", h.ToggleSlider)
		})

		// The view pages render for anonymous sessions too; the provider
		// keeps the dashboard unresolved until the session signs in.
		r.Get("/{dashboardId}", h.View)
		r.Get("/{dashboardId}/widget/{widgetId}", h.View)
		r.Get("/{dashboardId}/updates", h.ViewUpdates)
	})

	router.With(common.RequireAuth).Get("/updates", h.ListUpdates)

	return h
}
