package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"wafleet/internal/http/responses"
)

// NewRateLimit cria um middleware de rate limiting por chave de API; sem
// header Authorization a contagem cai para o IP de origem
func NewRateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(keyByAPIKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			responses.TooManyRequests(w, "Rate limit exceeded")
		}),
	)
}

func keyByAPIKey(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		return header, nil
	}
	return httprate.KeyByIP(r)
}
