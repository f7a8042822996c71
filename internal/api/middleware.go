package api

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// requireAuth verifies the bearer token and adds the resolved identity to
// the request context. REST endpoints always require a valid token; the
// anonymous downgrade exists only on the WebSocket path.
func (s *Server) requireAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")

			return
		}

		id, err := s.verifier.Verify(token)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid or expired token")

			return
		}

		next(w, r.WithContext(withIdentity(r.Context(), id)), ps)
	}
}

// bearerToken extracts the token from the Authorization header, falling
// back to the token query parameter for clients that cannot set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}

		return ""
	}

	return r.URL.Query().Get("token")
}
