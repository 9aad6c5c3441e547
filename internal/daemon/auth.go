package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireToken guards a route with the configured bearer token. An empty
// token disables the check entirely; otherwise requests must present
// "Authorization: Bearer <token>" and failures get the standard JSON
// error envelope.
func (s *apiServer) requireToken(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}
