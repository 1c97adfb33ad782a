package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"wafleet/internal/domain/broadcast"
)

// broadcastRepository implementa a interface broadcast.Repository
type broadcastRepository struct {
	db *bun.DB
}

// NewBroadcastRepository cria uma nova instância do repositório de broadcasts
func NewBroadcastRepository(db *bun.DB) broadcast.Repository {
	return &broadcastRepository{db: db}
}

// Create cria um novo broadcast no banco de dados
func (r *broadcastRepository) Create(ctx context.Context, b *broadcast.Broadcast) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	if b.Status == "" {
		b.Status = broadcast.StatusDraft
	}

	_, err := r.db.NewInsert().Model(b).Exec(ctx)
	return err
}

// GetByID busca um broadcast pelo ID
func (r *broadcastRepository) GetByID(ctx context.Context, id uuid.UUID) (*broadcast.Broadcast, error) {
	b := new(broadcast.Broadcast)
	err := r.db.NewSelect().Model(b).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, broadcast.ErrBroadcastNotFound
		}
		return nil, err
	}
	return b, nil
}

// Update persiste a linha inteira do broadcast
func (r *broadcastRepository) Update(ctx context.Context, b *broadcast.Broadcast) error {
	b.UpdatedAt = time.Now()

	_, err := r.db.NewUpdate().
		Model(b).
		Where("id = ?", b.ID).
		Exec(ctx)

	return err
}

// ListDueDrafts retorna rascunhos com scheduled_at <= now
func (r *broadcastRepository) ListDueDrafts(ctx context.Context, now time.Time) ([]*broadcast.Broadcast, error) {
	var broadcasts []*broadcast.Broadcast
	err := r.db.NewSelect().
		Model(&broadcasts).
		Where("status = ?", broadcast.StatusDraft).
		Where("scheduled_at IS NOT NULL").
		Where("scheduled_at <= ?", now).
		Order("scheduled_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return broadcasts, nil
}

// ListByStatus retorna broadcasts em um status específico
func (r *broadcastRepository) ListByStatus(ctx context.Context, status broadcast.Status) ([]*broadcast.Broadcast, error) {
	var broadcasts []*broadcast.Broadcast
	err := r.db.NewSelect().
		Model(&broadcasts).
		Where("status = ?", status).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return broadcasts, nil
}

// Promote executa a transição condicional draft -> processing. A contagem
// de linhas decide qual servidor ganhou a promoção.
func (r *broadcastRepository) Promote(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*broadcast.Broadcast)(nil)).
		Set("status = ?", broadcast.StatusProcessing).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", broadcast.StatusDraft).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// GetStatus relê apenas o status do broadcast
func (r *broadcastRepository) GetStatus(ctx context.Context, id uuid.UUID) (broadcast.Status, error) {
	var status broadcast.Status
	err := r.db.NewSelect().
		Model((*broadcast.Broadcast)(nil)).
		Column("status").
		Where("id = ?", id).
		Scan(ctx, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", broadcast.ErrBroadcastNotFound
		}
		return "", err
	}
	return status, nil
}

// UpdateCounters faz checkpoint dos contadores; GREATEST garante que os
// contadores nunca regridem em replays
func (r *broadcastRepository) UpdateCounters(ctx context.Context, id uuid.UUID, sent, failed int) error {
	_, err := r.db.NewUpdate().
		Model((*broadcast.Broadcast)(nil)).
		Set("sent_count = GREATEST(sent_count, ?)", sent).
		Set("failed_count = GREATEST(failed_count, ?)", failed).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// Finish grava o status final com os contadores definitivos
func (r *broadcastRepository) Finish(ctx context.Context, id uuid.UUID, status broadcast.Status, sent, failed int) error {
	_, err := r.db.NewUpdate().
		Model((*broadcast.Broadcast)(nil)).
		Set("status = ?", status).
		Set("sent_count = ?", sent).
		Set("failed_count = ?", failed).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}
