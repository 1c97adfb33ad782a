package device

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository define o contrato de persistência de dispositivos
type Repository interface {
	Create(ctx context.Context, dev *Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	List(ctx context.Context) ([]*Device, error)

	// ListByStatuses retorna dispositivos em qualquer um dos status informados
	ListByStatuses(ctx context.Context, statuses ...Status) ([]*Device, error)

	// Update persiste a linha de estado (last-writer-wins por id). O blob
	// de sessão não é tocado: session_data só muda via SaveSession.
	Update(ctx context.Context, dev *Device) error

	// Claim executa a atribuição atômica: UPDATE ... SET assigned_server_id = serverID
	// WHERE id = deviceID AND assigned_server_id IS NULL. Retorna true somente
	// quando exatamente uma linha foi modificada.
	Claim(ctx context.Context, deviceID uuid.UUID, serverID string) (bool, error)

	// GetAssignedServer relê assigned_server_id direto do banco, sem cache
	GetAssignedServer(ctx context.Context, deviceID uuid.UUID) (*string, error)

	// ReleaseByServer limpa a atribuição de todos os dispositivos de um servidor
	ReleaseByServer(ctx context.Context, serverID string) (int64, error)

	// CountAssigned conta dispositivos atribuídos a um servidor
	CountAssigned(ctx context.Context, serverID string) (int, error)

	// SaveSession grava o blob de credenciais com timestamp de gravação
	SaveSession(ctx context.Context, deviceID uuid.UUID, blob []byte, savedAt time.Time) error
}
