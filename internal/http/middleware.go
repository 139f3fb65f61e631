package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"textsum-eval/internal/auth"
	"textsum-eval/internal/evaluation"
	"textsum-eval/internal/log"
)

// RequireAPIToken admits requests carrying the admin token. An empty token
// disables the protected routes entirely.
func RequireAPIToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errResp("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRater resolves the bearer token to a rater and stores the rater id
// in the request context.
func (s *Server) RequireRater(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errResp("missing bearer"))
			return
		}
		rater, err := s.Repo.RaterByTokenHash(r.Context(), auth.HashToken(tok))
		if errors.Is(err, evaluation.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, errResp("unknown rater token"))
			return
		}
		if err != nil {
			log.Errorf("rater lookup: %v", err)
			writeJSON(w, http.StatusInternalServerError, errResp("internal error"))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithRater(r.Context(), rater.ID)))
	})
}

func raterID(r *http.Request) string {
	id, _ := auth.RaterFrom(r.Context())
	return id
}
