package device

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Erros de domínio específicos para dispositivos
var (
	// ErrDeviceNotFound indica que o dispositivo não foi encontrado
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceAlreadyConnected indica que o dispositivo já está conectado
	ErrDeviceAlreadyConnected = errors.New("device already connected")

	// ErrDeviceNotConnected indica que o dispositivo não está conectado
	ErrDeviceNotConnected = errors.New("device not connected")

	// ErrNotOwner indica que o dispositivo pertence a outro servidor
	ErrNotOwner = errors.New("device is assigned to another server")

	// ErrClaimLost indica que outro servidor venceu a corrida pelo claim
	ErrClaimLost = errors.New("device claim lost to another server")

	// ErrAlreadyRegistered indica tentativa de pareamento com credenciais
	// já registradas; a biblioteca recusa emitir código nesse estado
	ErrAlreadyRegistered = errors.New("pairing requires unregistered credentials")

	// ErrPairingRateLimited indica rate limit do upstream ao gerar código
	ErrPairingRateLimited = errors.New("pairing code rate limited, retry later")

	// ErrSocketNotFound indica que não há socket vivo para o dispositivo
	ErrSocketNotFound = errors.New("no live socket for device")
)

// DeviceError representa um erro específico de dispositivo com contexto adicional
type DeviceError struct {
	DeviceID uuid.UUID
	Op       string
	Err      error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %s: %v", e.DeviceID, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewDeviceError cria um novo erro de dispositivo
func NewDeviceError(deviceID uuid.UUID, op string, err error) *DeviceError {
	return &DeviceError{
		DeviceID: deviceID,
		Op:       op,
		Err:      err,
	}
}
