package dashboards

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/leapboard/internal/api"
	dashboardsvc "github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/provider"
	"github.com/leapstack-labs/leapboard/internal/route"
	"github.com/leapstack-labs/leapboard/internal/ui/features/common"
	"github.com/leapstack-labs/leapboard/internal/ui/notifier"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

const (
	saveTimeout   = 10 * time.Second
	maxImportSize = 4 << 20
)

// SearchSignals are sent by the list page search box.
type SearchSignals struct {
	Search string `json:"search"`
}

// TitleSignals are sent by the title editor.
type TitleSignals struct {
	Title string `json:"title"`
}

// SliderSignals are sent by the slider toggle.
type SliderSignals struct {
	SliderOpen bool `json:"sliderOpen"`
}

// LayoutSignals are sent by the layout editor.
type LayoutSignals struct {
	Layout []core.LayoutEntry `json:"layout"`
}

// Handlers provides HTTP handlers for the dashboard feature.
type Handlers struct {
	svc       *dashboardsvc.Service
	registry  *provider.Registry
	notifier  *notifier.Notifier
	debouncer *dashboardsvc.Debouncer
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		svc:       cfg.Service,
		registry:  cfg.Registry,
		notifier:  cfg.Notifier,
		debouncer: dashboardsvc.NewDebouncer(cfg.TitleDebounce),
		logger:    logger,
	}
}

// Stop cancels pending title saves.
func (h *Handlers) Stop() {
	h.debouncer.Stop()
}

// ListPage renders every dashboard, optionally filtered by ?q=.
func (h *Handlers) ListPage(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	q := r.URL.Query().Get("q")

	list, err := h.svc.List(r.Context())
	if err != nil {
		common.Render(w, http.StatusInternalServerError, listPage(s, nil, q, err.Error()))
		return
	}
	common.Render(w, http.StatusOK, listPage(s, dashboardsvc.Search(list, q), q, ""))
}

// SearchSSE patches the dashboard table with the dashboards matching the
// search signal.
func (h *Handlers) SearchSSE(w http.ResponseWriter, r *http.Request) {
	var signals SearchSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := h.patchTable(r.Context(), sse, signals.Search); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// ListUpdates is the long-lived SSE endpoint of the list page. It re-renders
// the table whenever a dashboard changes.
func (h *Handlers) ListUpdates(w http.ResponseWriter, r *http.Request) {
	var signals SearchSignals
	// Missing signals only mean an empty search.
	_ = datastar.ReadSignals(r, &signals)

	sse := datastar.NewSSE(w, r)
	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := h.patchTable(ctx, sse, signals.Search); err != nil {
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *Handlers) patchTable(ctx context.Context, sse *datastar.ServerSentEventGenerator, q string) error {
	list, err := h.svc.List(ctx)
	if err != nil {
		return err
	}
	frag, err := common.RenderString(dashboardTable(dashboardsvc.Search(list, q)))
	if err != nil {
		return err
	}
	return sse.PatchElements(frag)
}

// Create creates a dashboard and opens it.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d, err := h.svc.Create(r.Context(), r.PostForm.Get("title"), s.User())
	if err != nil {
		h.logger.Error("failed to create dashboard", "error", err)
		common.Render(w, api.StatusFor(err), listPage(s, nil, "", err.Error()))
		return
	}

	h.notifier.BroadcastAll()
	common.SeeOther(w, r, route.DashboardPath(d.ID))
}

// Import creates a dashboard from a pasted or uploaded JSON document.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())

	raw, err := readImport(w, r)
	if err == nil {
		var d *core.Dashboard
		d, err = h.svc.Import(r.Context(), raw, s.User())
		if err == nil {
			h.notifier.BroadcastAll()
			common.SeeOther(w, r, route.DashboardPath(d.ID))
			return
		}
	}

	list, listErr := h.svc.List(r.Context())
	if listErr != nil {
		h.logger.Error("failed to list dashboards", "error", listErr)
	}
	common.Render(w, api.StatusFor(err), listPage(s, list, "", "Import failed: "+err.Error()))
}

// readImport returns the document from the "file" upload or the "json" field.
func readImport(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			return nil, errors.Join(dashboardsvc.ErrInvalidDashboard, err)
		}
		if f, _, err := r.FormFile("file"); err == nil {
			defer func() { _ = f.Close() }()
			return io.ReadAll(f)
		}
		return []byte(r.FormValue("json")), nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, errors.Join(dashboardsvc.ErrInvalidDashboard, err)
	}
	return []byte(r.PostForm.Get("json")), nil
}

// Delete removes a dashboard and returns to the list.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "dashboardId")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), api.StatusFor(err))
		return
	}

	h.notifier.Broadcast(notifier.Event{DashboardID: id})
	common.SeeOther(w, r, "/dashboard")
}
