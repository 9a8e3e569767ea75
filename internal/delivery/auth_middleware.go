package delivery

import (
	"net/http"
	"strings"

	"github.com/Vovarama1992/online_assistant/internal/ports"
)

// AuthMiddleware admits requests carrying a valid "Bearer <token>" header.
func AuthMiddleware(auth ports.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if ok, err := auth.ValidateToken(r.Context(), token); err != nil || !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
