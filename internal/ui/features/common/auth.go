package common

import (
	"net/http"
	"net/url"
)

// RequireAuth sends anonymous sessions to the sign-in page. Non-GET requests
// are rejected with 401 instead of being redirected.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFrom(r.Context()).Authenticated() {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodGet {
			http.Error(w, "sign in required", http.StatusUnauthorized)
			return
		}
		SeeOther(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()))
	})
}
