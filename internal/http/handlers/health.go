package handlers

import (
	"net/http"
	"time"

	"wafleet/internal/http/responses"
	"wafleet/internal/infra/whatsapp"
)

// HealthHandler implementa o handler de health check
type HealthHandler struct {
	registry *whatsapp.Registry
}

// NewHealthHandler cria uma nova instância do health handler
func NewHealthHandler(registry *whatsapp.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Health verifica a saúde da aplicação e o número de conexões ativas
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	responses.Success(w, "Service is healthy", map[string]interface{}{
		"status":            "ok",
		"activeConnections": h.registry.ActiveCount(),
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}
