package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"wafleet/internal/http/responses"
	groupUseCases "wafleet/internal/usecases/group"
	"wafleet/pkg/logger"
)

// GroupHandler implementa os handlers de grupos
type GroupHandler struct {
	listUseCase *groupUseCases.ListGroupsUseCase
	logger      logger.Logger
}

// NewGroupHandler cria uma nova instância do group handler
func NewGroupHandler(listUseCase *groupUseCases.ListGroupsUseCase, log logger.Logger) *GroupHandler {
	return &GroupHandler{
		listUseCase: listUseCase,
		logger:      log.WithComponent("group-handler"),
	}
}

// ListGroups lista os grupos do dispositivo via socket vivo
func (h *GroupHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	deviceID, err := uuid.Parse(chi.URLParam(r, "deviceID"))
	if err != nil {
		responses.BadRequest(w, "Invalid device ID format", err.Error())
		return
	}

	groups, err := h.listUseCase.Execute(r.Context(), deviceID)
	if err != nil {
		h.logger.WithError(err).Error().Msg("Failed to list groups")
		responses.FromError(w, err)
		return
	}

	responses.Success(w, "Groups listed", map[string]interface{}{
		"deviceId": deviceID,
		"groups":   groups,
		"total":    len(groups),
	})
}
