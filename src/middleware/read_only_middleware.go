package middleware

import (
	"net/http"
)

// ReadOnly rejects every non-GET request when enabled, except POSTs to the
// listed paths.
func ReadOnly(enabled bool, allowedPosts ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedPosts))
	for _, p := range allowedPosts {
		allowed[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if r.Method == http.MethodPost && allowed[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			WriteError(w, http.StatusForbidden, "read-only mode: only GET requests are allowed")
		})
	}
}
