package mw

import (
	"crypto/subtle"
	"net/http"

	"github.com/MrSnakeDoc/scout/internal/logger"
)

// AdminTokenHeader carries the operator secret.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken rejects requests whose X-Admin-Token does not match token.
// An empty token closes the route entirely.
func AdminToken(token string, log logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(AdminTokenHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				log.Warn("admin token rejected",
					logger.String("path", r.URL.Path),
					logger.String("remote_ip", r.RemoteAddr))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"ok":false,"error":"forbidden"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
