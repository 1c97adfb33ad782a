package broadcast

import "errors"

// Erros de domínio específicos para broadcasts
var (
	// ErrBroadcastNotFound indica que o broadcast não foi encontrado
	ErrBroadcastNotFound = errors.New("broadcast not found")

	// ErrNotDraft indica tentativa de promover um broadcast que não é rascunho
	ErrNotDraft = errors.New("broadcast is not a draft")

	// ErrCancelled indica que o broadcast foi cancelado externamente
	ErrCancelled = errors.New("broadcast cancelled")

	// ErrDeviceUnavailable indica que o dispositivo não tem socket vivo;
	// a falha é retryable e o supervisor cuidará da reconexão
	ErrDeviceUnavailable = errors.New("broadcast device has no live socket")
)
