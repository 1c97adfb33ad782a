package responses

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wafleet/internal/domain/broadcast"
	"wafleet/internal/domain/device"
	"wafleet/pkg/phone"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestFromErrorMapsWhitelistedErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"device not found", device.ErrDeviceNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"broadcast not found", broadcast.ErrBroadcastNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"not owner", device.ErrNotOwner, http.StatusConflict, "CONFLICT"},
		{"claim lost", device.ErrClaimLost, http.StatusConflict, "CONFLICT"},
		{"not connected", device.ErrDeviceNotConnected, http.StatusConflict, "CONFLICT"},
		{"no socket", device.ErrSocketNotFound, http.StatusConflict, "CONFLICT"},
		{"already registered", device.ErrAlreadyRegistered, http.StatusConflict, "CONFLICT"},
		{"pairing rate limited", device.ErrPairingRateLimited, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{"invalid phone", phone.ErrInvalidPhoneNumber, http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestFromErrorUnwrapsDeviceError(t *testing.T) {
	wrapped := device.NewDeviceError(uuid.Nil, "send", device.ErrDeviceNotConnected)

	rec := httptest.NewRecorder()
	FromError(rec, fmt.Errorf("usecase: %w", wrapped))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFromErrorHidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, errors.New("pq: relation devices does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)

	// Nenhum detalhe interno vaza para o cliente
	assert.NotContains(t, rec.Body.String(), "relation")
}

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, "done", map[string]interface{}{"n": 1})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "done", resp.Message)
}
