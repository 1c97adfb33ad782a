package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"wafleet/internal/http/responses"
	messageUseCases "wafleet/internal/usecases/message"
	"wafleet/pkg/logger"
)

// MessageHandler implementa os handlers de mensagens avulsas
type MessageHandler struct {
	sendUseCase *messageUseCases.SendMessageUseCase
	logger      logger.Logger
}

// NewMessageHandler cria uma nova instância do message handler
func NewMessageHandler(sendUseCase *messageUseCases.SendMessageUseCase, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		sendUseCase: sendUseCase,
		logger:      log.WithComponent("message-handler"),
	}
}

// SendMessage envia uma mensagem de texto ou mídia para um número
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageUseCases.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		responses.BadRequest(w, "Invalid request body", err.Error())
		return
	}

	response, err := h.sendUseCase.Execute(r.Context(), req)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			responses.BadRequest(w, "Invalid request", verrs.Error())
			return
		}
		h.logger.WithError(err).Error().Msg("Failed to send message")
		responses.FromError(w, err)
		return
	}

	responses.Success(w, "Message sent", response)
}
