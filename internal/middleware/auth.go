package middleware

import (
	"net/http"
	"strings"

	"github.com/modernsoft/estock-support/backend/pkg/utils"
)

// TokenVerifier validates an admin bearer token.
type TokenVerifier interface {
	Verify(token string) error
}

// AdminAuth 要求请求携带 Authorization: Bearer <token>。
func AdminAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				utils.RespondError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				utils.RespondError(w, http.StatusUnauthorized, "invalid Authorization format")
				return
			}
			if err := verifier.Verify(strings.TrimSpace(token)); err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
