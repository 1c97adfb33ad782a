package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"

	"wafleet/internal/domain/server"
)

// serverRepository implementa a interface server.Repository
type serverRepository struct {
	db *bun.DB
}

// NewServerRepository cria uma nova instância do repositório de servidores
func NewServerRepository(db *bun.DB) server.Repository {
	return &serverRepository{db: db}
}

// Upsert registra ou atualiza a linha do servidor no boot
func (r *serverRepository) Upsert(ctx context.Context, srv *server.BackendServer) error {
	now := time.Now()
	if srv.CreatedAt.IsZero() {
		srv.CreatedAt = now
	}
	srv.UpdatedAt = now
	srv.LastHealthCheck = now

	_, err := r.db.NewInsert().
		Model(srv).
		On("CONFLICT (id) DO UPDATE").
		Set("url = EXCLUDED.url").
		Set("region = EXCLUDED.region").
		Set("priority = EXCLUDED.priority").
		Set("max_capacity = EXCLUDED.max_capacity").
		Set("is_active = EXCLUDED.is_active").
		Set("is_healthy = EXCLUDED.is_healthy").
		Set("last_health_check = EXCLUDED.last_health_check").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

// GetByID busca um servidor pelo ID
func (r *serverRepository) GetByID(ctx context.Context, id string) (*server.BackendServer, error) {
	srv := new(server.BackendServer)
	err := r.db.NewSelect().Model(srv).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, server.ErrServerNotFound
		}
		return nil, err
	}
	return srv, nil
}

// ListEligible retorna servidores ativos e saudáveis
func (r *serverRepository) ListEligible(ctx context.Context) ([]*server.BackendServer, error) {
	var servers []*server.BackendServer
	err := r.db.NewSelect().
		Model(&servers).
		Where("is_active = ?", true).
		Where("is_healthy = ?", true).
		Order("priority DESC", "current_load ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return servers, nil
}

// ListStale retorna servidores não saudáveis ou sem health check recente
func (r *serverRepository) ListStale(ctx context.Context, olderThan time.Time) ([]*server.BackendServer, error) {
	var servers []*server.BackendServer
	err := r.db.NewSelect().
		Model(&servers).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("is_healthy = ?", false).
				WhereOr("last_health_check < ?", olderThan)
		}).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return servers, nil
}

// TouchHealth atualiza last_health_check, is_healthy e a carga corrente
func (r *serverRepository) TouchHealth(ctx context.Context, id string, healthy bool, load int) error {
	_, err := r.db.NewUpdate().
		Model((*server.BackendServer)(nil)).
		Set("is_healthy = ?", healthy).
		Set("current_load = ?", load).
		Set("last_health_check = ?", time.Now()).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}

// SetActive liga/desliga a participação do servidor na frota
func (r *serverRepository) SetActive(ctx context.Context, id string, active bool) error {
	_, err := r.db.NewUpdate().
		Model((*server.BackendServer)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Exec(ctx)

	return err
}
