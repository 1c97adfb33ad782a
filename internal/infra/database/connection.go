// Package database implementa a camada de persistência PostgreSQL via bun
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"wafleet/internal/domain/broadcast"
	"wafleet/internal/domain/contact"
	"wafleet/internal/domain/device"
	"wafleet/internal/domain/eventlog"
	"wafleet/internal/domain/server"
	"wafleet/pkg/logger"
)

// NewDatabase cria uma nova conexão com o banco de dados PostgreSQL
func NewDatabase(dsn string, debug bool, log logger.Logger) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))

	db := bun.NewDB(sqldb, pgdialect.New())

	if debug {
		db.AddQueryHook(logger.NewBunQueryHook(log))
	}

	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// RunMigrations cria as tabelas e índices do esquema se não existirem
func RunMigrations(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*device.Device)(nil),
		(*server.BackendServer)(nil),
		(*broadcast.Broadcast)(nil),
		(*contact.Contact)(nil),
		(*eventlog.ConnectionEvent)(nil),
		(*eventlog.ServerAction)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_devices_assigned_server ON devices (assigned_server_id)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices (status)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_user ON devices (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_broadcasts_status_scheduled ON broadcasts (status, scheduled_at)`,
		`CREATE INDEX IF NOT EXISTS idx_broadcasts_device ON broadcasts (device_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_user_phone ON contacts (user_id, phone)`,
		`CREATE INDEX IF NOT EXISTS idx_connection_events_device ON device_connection_events (device_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_server_actions_server ON server_action_logs (server_id, created_at)`,
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
