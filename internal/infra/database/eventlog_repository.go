package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"wafleet/internal/domain/eventlog"
)

// eventlogRepository implementa a interface eventlog.Repository
type eventlogRepository struct {
	db *bun.DB
}

// NewEventLogRepository cria uma nova instância do repositório de histórico
func NewEventLogRepository(db *bun.DB) eventlog.Repository {
	return &eventlogRepository{db: db}
}

// RecordConnection grava um evento de conexão de dispositivo
func (r *eventlogRepository) RecordConnection(ctx context.Context, ev *eventlog.ConnectionEvent) error {
	ev.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(ev).Exec(ctx)
	return err
}

// RecordServerAction grava uma ação administrativa da frota
func (r *eventlogRepository) RecordServerAction(ctx context.Context, act *eventlog.ServerAction) error {
	act.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(act).Exec(ctx)
	return err
}

// ListByDevice retorna os eventos mais recentes de um dispositivo
func (r *eventlogRepository) ListByDevice(ctx context.Context, deviceID uuid.UUID, limit int) ([]*eventlog.ConnectionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []*eventlog.ConnectionEvent
	err := r.db.NewSelect().
		Model(&events).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}
