// Package api serves dashboards as JSON under /api/v1.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// Prefix is the mount point of the dashboard API.
const Prefix = "/api/v1/dashboards"

// UserHeader carries the name of the user performing a mutation.
const UserHeader = "X-Leapboard-User"

const maxBodySize = 4 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handlers provides the dashboard API handlers.
type Handlers struct {
	svc      *dashboards.Service
	logger   *slog.Logger
	onChange func()
}

// NewHandlers creates the API handlers. onChange runs after every successful
// mutation and may be nil.
func NewHandlers(svc *dashboards.Service, logger *slog.Logger, onChange func()) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &Handlers{svc: svc, logger: logger, onChange: onChange}
}

// SetupRoutes registers the API routes on router. When token is not empty
// every request must carry it as a bearer token.
func SetupRoutes(router chi.Router, svc *dashboards.Service, token string, logger *slog.Logger, onChange func()) {
	h := NewHandlers(svc, logger, onChange)

	router.Route(Prefix, func(r chi.Router) {
		r.Use(RequireToken(token))
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/import", h.Import)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// RequireToken rejects requests whose Authorization header does not carry
// token as a bearer token. An empty token leaves the API open.
func RequireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="leapboard"`)
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid API token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// List returns every dashboard, newest first.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if list == nil {
		list = []*core.Dashboard{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create creates a dashboard from a data object; an empty body creates an
// empty dashboard with the default title.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var data core.DashboardData
	if err := decodeBody(r, &data, true); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	d, err := h.svc.CreateFrom(r.Context(), data, r.Header.Get(UserHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.onChange()
	writeJSON(w, http.StatusCreated, d)
}

// Import creates a dashboard from an exported document.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	d, err := h.svc.Import(r.Context(), raw, r.Header.Get(UserHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.onChange()
	writeJSON(w, http.StatusCreated, d)
}

// Get returns one dashboard.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Update persists the full dashboard representation and responds with the
// stored result.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	var d core.Dashboard
	if err := decodeBody(r, &d, false); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	id := chi.URLParam(r, "id")
	if d.ID != "" && d.ID != id {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "dashboard id does not match path"})
		return
	}
	d.ID = id

	if err := dashboards.Validate(d.Data); err != nil {
		h.writeError(w, err)
		return
	}

	out, err := h.svc.Update(r.Context(), &d, r.Header.Get(UserHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.onChange()
	writeJSON(w, http.StatusOK, out)
}

// Delete removes a dashboard.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	h.onChange()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("dashboard api request failed", "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboards.ErrInvalidDashboard):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
