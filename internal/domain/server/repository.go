package server

import (
	"context"
	"errors"
	"time"
)

// ErrServerNotFound indica que o servidor não foi encontrado
var ErrServerNotFound = errors.New("server not found")

// Repository define o contrato de persistência de servidores da frota
type Repository interface {
	// Upsert registra ou atualiza a linha do servidor no boot
	Upsert(ctx context.Context, srv *BackendServer) error

	GetByID(ctx context.Context, id string) (*BackendServer, error)

	// ListEligible retorna servidores ativos e saudáveis
	ListEligible(ctx context.Context) ([]*BackendServer, error)

	// ListStale retorna servidores não saudáveis (ou sem health check desde
	// o limite) cujos dispositivos podem ser reatribuídos
	ListStale(ctx context.Context, olderThan time.Time) ([]*BackendServer, error)

	// TouchHealth atualiza last_health_check e is_healthy
	TouchHealth(ctx context.Context, id string, healthy bool, load int) error

	// SetActive liga/desliga a participação do servidor na frota
	SetActive(ctx context.Context, id string, active bool) error
}
