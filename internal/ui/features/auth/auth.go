// Package auth provides the sign-in and sign-out pages.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	g "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"

	"github.com/leapstack-labs/leapboard/internal/ui/features/common"
)

// Releaser drops per-session state when a session ends.
type Releaser interface {
	Release(sessionID string)
}

// Handlers provides HTTP handlers for the auth feature.
type Handlers struct {
	password string
	releaser Releaser
	logger   *slog.Logger
}

// NewHandlers creates auth handlers. An empty password lets any non-empty
// user name sign in.
func NewHandlers(password string, releaser Releaser, logger *slog.Logger) *Handlers {
	return &Handlers{password: password, releaser: releaser, logger: logger}
}

// SetupRoutes registers the auth routes.
func SetupRoutes(router chi.Router, password string, releaser Releaser, logger *slog.Logger) {
	h := NewHandlers(password, releaser, logger)
	router.Get("/login", h.LoginPage)
	router.Post("/login", h.Login)
	router.Post("/logout", h.Logout)
}

// LoginPage renders the sign-in form.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	common.Render(w, http.StatusOK, loginPage(s, SafeNext(r.URL.Query().Get("next")), ""))
}

// Login signs the session in.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		common.Render(w, http.StatusBadRequest, loginPage(s, "/dashboard", err.Error()))
		return
	}

	user := strings.TrimSpace(r.PostForm.Get("user"))
	next := SafeNext(r.PostForm.Get("next"))
	if user == "" {
		common.Render(w, http.StatusBadRequest, loginPage(s, next, "User name is required"))
		return
	}
	if h.password != "" && subtle.ConstantTimeCompare([]byte(r.PostForm.Get("password")), []byte(h.password)) != 1 {
		h.logger.Warn("failed sign in", "user", user)
		common.Render(w, http.StatusUnauthorized, loginPage(s, next, "Invalid credentials"))
		return
	}

	s.Login(user)
	if err := s.Save(r, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.logger.Info("signed in", "user", user)
	common.SeeOther(w, r, next)
}

// Logout signs the session out and releases its dashboard state.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	s := common.SessionFrom(r.Context())
	prev := s.Logout()
	if h.releaser != nil && prev != "" {
		h.releaser.Release(prev)
	}
	if err := s.Save(r, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	common.SeeOther(w, r, "/login")
}

// SafeNext returns next when it is a local path, otherwise /dashboard.
func SafeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}

func loginPage(s *common.Session, next, errMsg string) g.Node {
	return common.Page("Sign in", s,
		html.Div(html.Class("card"),
			html.H2(g.Text("Sign in")),
			g.If(errMsg != "", common.ErrorMessage(errMsg)),
			html.Form(html.Method("post"), html.Action("/login"),
				html.Input(html.Type("hidden"), html.Name("next"), html.Value(next)),
				html.P(html.Input(html.Type("text"), html.Name("user"), html.Placeholder("User name"), html.Required())),
				html.P(html.Input(html.Type("password"), html.Name("password"), html.Placeholder("Password"))),
				html.Button(html.Class("primary"), html.Type("submit"), g.Text("Sign in")),
			),
		),
	)
}
