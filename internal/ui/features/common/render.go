package common

import (
	"net/http"
	"strings"

	g "maragu.dev/gomponents"
)

// Render writes node as an HTML response with the given status.
func Render(w http.ResponseWriter, status int, node g.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

// RenderString renders node for an SSE element patch.
func RenderString(node g.Node) (string, error) {
	var b strings.Builder
	if err := node.Render(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// SeeOther redirects to path after a form post.
func SeeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}
