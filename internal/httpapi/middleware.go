package httpapi

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader carries the shared key for guarded endpoints.
const AdminKeyHeader = "X-Admin-Key"

// RequireKey rejects requests whose X-Admin-Key header does not match key.
// An empty key leaves the route open, which is the dev-mode default.
func RequireKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				got := r.Header.Get(AdminKeyHeader)
				if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
					respondError(w, http.StatusUnauthorized, "admin key required")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
