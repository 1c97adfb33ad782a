package middleware

import (
	"net/http"
	"strings"

	"wafleet/internal/http/responses"
)

// NewAPIKeyAuth valida o header Authorization: Bearer <key> contra a chave
// configurada. Chave vazia na configuração desativa a autenticação (uso em
// desenvolvimento).
func NewAPIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token != apiKey {
				responses.Unauthorized(w, "Missing or invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
