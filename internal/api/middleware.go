package api

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader carries the push API key
const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key header does not match key.
// An empty key disables the check.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				jsonErr(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
