package api

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey struct{}

// authenticate requires a valid bearer token and stores its user id in the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		userID, err := s.tokens.VerifyToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(ctxKey{}).(string)
	return userID
}
