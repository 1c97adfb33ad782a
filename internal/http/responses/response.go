package responses

import (
	"encoding/json"
	"errors"
	"net/http"

	"wafleet/internal/domain/broadcast"
	"wafleet/internal/domain/device"
	"wafleet/pkg/phone"
)

// APIResponse representa a estrutura padronizada de resposta da API
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError representa detalhes de erro na resposta
type APIError struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// WriteJSON escreve uma resposta JSON padronizada
func WriteJSON(w http.ResponseWriter, statusCode int, success bool, message string, data interface{}, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := APIResponse{
		Success: success,
		Message: message,
		Data:    data,
		Error:   err,
	}

	json.NewEncoder(w).Encode(response)
}

// Success escreve uma resposta de sucesso
func Success(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusOK, true, message, data, nil)
}

// Created escreve uma resposta de recurso criado
func Created(w http.ResponseWriter, message string, data interface{}) {
	WriteJSON(w, http.StatusCreated, true, message, data, nil)
}

// BadRequest escreve uma resposta de erro de requisição inválida
func BadRequest(w http.ResponseWriter, message string, details string) {
	WriteJSON(w, http.StatusBadRequest, false, message, nil, &APIError{
		Code:    "BAD_REQUEST",
		Details: details,
	})
}

// Unauthorized escreve uma resposta de credencial ausente ou inválida
func Unauthorized(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusUnauthorized, false, message, nil, &APIError{
		Code: "UNAUTHORIZED",
	})
}

// NotFound escreve uma resposta de recurso não encontrado
func NotFound(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusNotFound, false, message, nil, &APIError{
		Code: "NOT_FOUND",
	})
}

// Conflict escreve uma resposta de conflito
func Conflict(w http.ResponseWriter, message string, details string) {
	WriteJSON(w, http.StatusConflict, false, message, nil, &APIError{
		Code:    "CONFLICT",
		Details: details,
	})
}

// TooManyRequests escreve uma resposta de rate limit excedido
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusTooManyRequests, false, message, nil, &APIError{
		Code: "RATE_LIMIT_EXCEEDED",
	})
}

// InternalError escreve uma resposta de erro interno
func InternalError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusInternalServerError, false, message, nil, &APIError{
		Code: "INTERNAL_ERROR",
	})
}

// FromError mapeia erros de domínio para respostas HTTP. Apenas erros da
// lista branca chegam ao cliente com mensagem própria; qualquer outro vira
// um erro interno genérico, sem detalhes ou stack trace.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		NotFound(w, "Device not found")
	case errors.Is(err, broadcast.ErrBroadcastNotFound):
		NotFound(w, "Broadcast not found")
	case errors.Is(err, device.ErrNotOwner), errors.Is(err, device.ErrClaimLost):
		Conflict(w, "Device is handled by another server", err.Error())
	case errors.Is(err, device.ErrDeviceNotConnected), errors.Is(err, device.ErrSocketNotFound):
		Conflict(w, "Device is not connected", device.ErrDeviceNotConnected.Error())
	case errors.Is(err, device.ErrAlreadyRegistered):
		Conflict(w, "Device already paired", err.Error())
	case errors.Is(err, device.ErrPairingRateLimited):
		TooManyRequests(w, "Pairing code rate limited, retry later")
	case errors.Is(err, phone.ErrInvalidPhoneNumber):
		BadRequest(w, "Invalid phone number", err.Error())
	default:
		InternalError(w, "Internal server error")
	}
}
