package contact

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrContactNotFound indica que o contato não foi encontrado
var ErrContactNotFound = errors.New("contact not found")

// Repository define o contrato de persistência de contatos
type Repository interface {
	GetByPhone(ctx context.Context, userID uuid.UUID, phone string) (*Contact, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Contact, error)
	Upsert(ctx context.Context, c *Contact) error
}
