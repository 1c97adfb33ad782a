package eventlog

import (
	"context"

	"github.com/google/uuid"
)

// Repository define o contrato de gravação e consulta do histórico.
// A gravação é best-effort: falhas são registradas em log pelo chamador
// e nunca interrompem o fluxo principal.
type Repository interface {
	RecordConnection(ctx context.Context, ev *ConnectionEvent) error
	RecordServerAction(ctx context.Context, act *ServerAction) error
	ListByDevice(ctx context.Context, deviceID uuid.UUID, limit int) ([]*ConnectionEvent, error)
}
