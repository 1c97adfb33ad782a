package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository define o contrato de persistência de broadcasts
type Repository interface {
	Create(ctx context.Context, b *Broadcast) error
	GetByID(ctx context.Context, id uuid.UUID) (*Broadcast, error)
	Update(ctx context.Context, b *Broadcast) error

	// ListDueDrafts retorna rascunhos com scheduled_at <= now
	ListDueDrafts(ctx context.Context, now time.Time) ([]*Broadcast, error)

	// ListByStatus retorna broadcasts em um status específico
	ListByStatus(ctx context.Context, status Status) ([]*Broadcast, error)

	// Promote executa a transição condicional draft -> processing:
	// UPDATE ... SET status='processing' WHERE id = ? AND status='draft'.
	// Retorna true somente quando exatamente uma linha foi modificada,
	// evitando enfileiramento duplo entre servidores.
	Promote(ctx context.Context, id uuid.UUID) (bool, error)

	// GetStatus relê apenas o status (checagem de cancelamento no worker)
	GetStatus(ctx context.Context, id uuid.UUID) (Status, error)

	// UpdateCounters faz checkpoint dos contadores; contadores só crescem
	UpdateCounters(ctx context.Context, id uuid.UUID, sent, failed int) error

	// Finish grava o status final com os contadores definitivos
	Finish(ctx context.Context, id uuid.UUID, status Status, sent, failed int) error
}
