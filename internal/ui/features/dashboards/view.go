package dashboards

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/leapboard/internal/api"
	"github.com/leapstack-labs/leapboard/internal/provider"
	"github.com/leapstack-labs/leapboard/internal/route"
	"github.com/leapstack-labs/leapboard/internal/ui/features/common"
	"github.com/leapstack-labs/leapboard/internal/ui/notifier"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// viewParam carries the id of the open view that a request belongs to.
const viewParam = "view"

// View renders the dashboard named by the path. It serves both the
// dashboard view and the widget view. Every page load opens a new view with
// its own provider; the page sends the view id back with its requests.
func (h *Handlers) View(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	viewID := uuid.NewString()
	p := h.registry.Get(s.ID(), viewID)
	state := p.Render(r.Context(), r.URL.Path, s.Authenticated())

	status := http.StatusOK
	if res := state.DashboardResponse; res.IsError() && !res.HasData() {
		status = api.StatusFor(res.Err)
	}
	common.Render(w, status, viewPage(s, state, chi.URLParam(r, "widgetId"), viewID))
}

// ViewUpdates is the long-lived SSE endpoint of the dashboard view. It
// re-renders the view when the dashboard changes.
func (h *Handlers) ViewUpdates(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	id := chi.URLParam(r, "dashboardId")
	viewID := r.URL.Query().Get(viewParam)
	p := h.registry.Get(s.ID(), viewID)

	sse := datastar.NewSSE(w, r)
	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-updates:
			if !ok {
				return
			}
			if !e.Concerns(id) {
				continue
			}
			state := p.Render(ctx, route.DashboardPath(id), s.Authenticated())
			frag, err := common.RenderString(dashboardView(state, "", viewID))
			if err == nil {
				err = sse.PatchElements(frag)
			}
			if err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

// UpdateTitle saves a new title after the editor has been idle for the
// debounce delay. Blank titles are ignored.
func (h *Handlers) UpdateTitle(w http.ResponseWriter, r *http.Request) {
	var signals TitleSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := common.SessionFrom(r.Context())
	id := chi.URLParam(r, "dashboardId")
	title := strings.TrimSpace(signals.Title)
	if title != "" {
		p := h.providerFor(r, s)
		user := s.User()
		h.debouncer.Do(s.ID()+"/"+r.URL.Query().Get(viewParam)+"/"+id, func() {
			ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
			defer cancel()

			out, err := h.svc.UpdateTitle(ctx, id, title, user)
			if err != nil {
				h.logger.Error("failed to save dashboard title", "id", id, "error", err)
				return
			}
			if p.DashboardID() == id {
				p.SetSelectedDashboard(out)
			}
			h.notifier.Broadcast(notifier.Event{DashboardID: id})
		})
	}

	// Empty stream: the view is patched through the updates endpoint.
	datastar.NewSSE(w, r)
}

// ToggleSlider opens or closes the dashboard slider.
func (h *Handlers) ToggleSlider(w http.ResponseWriter, r *http.Request) {
	var signals SliderSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := common.SessionFrom(r.Context())
	p := h.providerFor(r, s)
	p.HandleToggleDashboardSlider(signals.SliderOpen)

	sse := datastar.NewSSE(w, r)
	frag, err := common.RenderString(sliderPanel(p.IsDashboardSliderOpen(), p.SelectedDashboard()))
	if err == nil {
		err = sse.PatchElements(frag)
	}
	if err != nil {
		_ = sse.ConsoleError(err)
	}
}

// UpdateLayout persists an edited layout and publishes the server's echo to
// the session's provider.
func (h *Handlers) UpdateLayout(w http.ResponseWriter, r *http.Request) {
	var signals LayoutSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := common.SessionFrom(r.Context())
	id := chi.URLParam(r, "dashboardId")
	for _, e := range signals.Layout {
		if e.I == "" {
			http.Error(w, "layout entry without panel id", http.StatusBadRequest)
			return
		}
	}

	out, err := h.svc.UpdateLayout(r.Context(), id, signals.Layout, s.User())
	if err != nil {
		status := api.StatusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to save dashboard layout", "id", id, "error", err)
		}
		http.Error(w, err.Error(), status)
		return
	}

	p := h.providerFor(r, s)
	if p.DashboardID() == id {
		p.SetSelectedDashboard(out)
		p.SetLayouts(core.VisibleLayout(out.Data.Layout))
	}
	h.notifier.Broadcast(notifier.Event{DashboardID: id})

	sse := datastar.NewSSE(w, r)
	frag, err := common.RenderString(layoutGrid(p.Layouts(), ""))
	if err == nil {
		err = sse.PatchElements(frag)
	}
	if err != nil {
		_ = sse.ConsoleError(err)
	}
}

// providerFor returns the provider of the view named by the request.
func (h *Handlers) providerFor(r *http.Request, s *common.Session) *provider.Provider {
	return h.registry.Get(s.ID(), r.URL.Query().Get(viewParam))
}
