package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"wafleet/internal/domain/contact"
)

// contactRepository implementa a interface contact.Repository
type contactRepository struct {
	db *bun.DB
}

// NewContactRepository cria uma nova instância do repositório de contatos
func NewContactRepository(db *bun.DB) contact.Repository {
	return &contactRepository{db: db}
}

// GetByPhone busca um contato do usuário pelo telefone normalizado
func (r *contactRepository) GetByPhone(ctx context.Context, userID uuid.UUID, phone string) (*contact.Contact, error) {
	c := new(contact.Contact)
	err := r.db.NewSelect().
		Model(c).
		Where("user_id = ?", userID).
		Where("phone = ?", phone).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, contact.ErrContactNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListByUser retorna todos os contatos de um usuário
func (r *contactRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*contact.Contact, error) {
	var contacts []*contact.Contact
	err := r.db.NewSelect().
		Model(&contacts).
		Where("user_id = ?", userID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

// Upsert insere ou atualiza o contato pela chave (user_id, phone)
func (r *contactRepository) Upsert(ctx context.Context, c *contact.Contact) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(c).
		On("CONFLICT (user_id, phone) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("var1 = EXCLUDED.var1").
		Set("var2 = EXCLUDED.var2").
		Set("var3 = EXCLUDED.var3").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}
