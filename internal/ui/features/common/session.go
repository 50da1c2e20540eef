// Package common provides the session handling, page shell and rendering
// helpers shared by the UI features.
package common

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/leapboard/internal/onboarding"
)

// SessionName is the cookie name of the UI session.
const SessionName = "leapboard"

const (
	keyID            = "sid"
	keyUser          = "user"
	keyAuthenticated = "authenticated"
	keyWizardModule  = "ob_module"
	keyWizardStep    = "ob_step"
	keyWizardLogs    = "ob_logs"
)

// Session wraps the cookie session of one browser.
type Session struct {
	raw *sessions.Session
}

type sessionKey struct{}

// SessionMiddleware loads the session, assigns a session id on first visit
// and makes the session available through SessionFrom.
func SessionMiddleware(store sessions.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// A cookie that fails to decode yields a fresh session.
			raw, _ := store.Get(r, SessionName)
			s := &Session{raw: raw}

			if s.ID() == "" {
				raw.Values[keyID] = uuid.NewString()
				if err := raw.Save(r, w); err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom returns the session stored by SessionMiddleware, or an empty
// anonymous session.
func SessionFrom(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return s
	}
	return &Session{raw: sessions.NewSession(nil, SessionName)}
}

// ID returns the session id keying the dashboard provider.
func (s *Session) ID() string {
	v, _ := s.raw.Values[keyID].(string)
	return v
}

// User returns the signed-in user name.
func (s *Session) User() string {
	v, _ := s.raw.Values[keyUser].(string)
	return v
}

// Authenticated reports whether the session is signed in.
func (s *Session) Authenticated() bool {
	v, _ := s.raw.Values[keyAuthenticated].(bool)
	return v
}

// Login marks the session as signed in as user.
func (s *Session) Login(user string) {
	s.raw.Values[keyUser] = user
	s.raw.Values[keyAuthenticated] = true
}

// Logout signs the session out and assigns a new session id. It returns the
// previous id so its provider can be released.
func (s *Session) Logout() string {
	prev := s.ID()
	for k := range s.raw.Values {
		delete(s.raw.Values, k)
	}
	s.raw.Values[keyID] = uuid.NewString()
	return prev
}

// Wizard returns the onboarding position stored in the session.
func (s *Session) Wizard() *onboarding.Wizard {
	w := onboarding.New()
	if m, ok := s.raw.Values[keyWizardModule].(string); ok {
		if _, known := onboarding.LookupModule(onboarding.ModuleID(m)); known {
			w.Module = onboarding.ModuleID(m)
		}
	}
	if step, ok := s.raw.Values[keyWizardStep].(int); ok {
		w.Jump(step)
	}
	if logs, ok := s.raw.Values[keyWizardLogs].(string); ok {
		w.LogsType = logs
	}
	return w
}

// SetWizard stores the onboarding position.
func (s *Session) SetWizard(w *onboarding.Wizard) {
	s.raw.Values[keyWizardModule] = string(w.Module)
	s.raw.Values[keyWizardStep] = w.Step
	s.raw.Values[keyWizardLogs] = w.LogsType
}

// Save writes the session cookie.
func (s *Session) Save(r *http.Request, w http.ResponseWriter) error {
	return s.raw.Save(r, w)
}
