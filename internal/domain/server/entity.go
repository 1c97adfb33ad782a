package server

import (
	"time"

	"github.com/uptrace/bun"
)

// BackendServer representa um servidor da frota que pode assumir dispositivos.
//
// current_load <= max_capacity é um alvo "soft" usado pelo seletor de admissão,
// não um limite rígido. Somente servidores com is_active e is_healthy participam
// da atribuição.
type BackendServer struct {
	bun.BaseModel `bun:"table:backend_servers,alias:bs"`

	ID              string    `bun:"id,pk,type:varchar(128)" json:"id"`
	URL             string    `bun:"url,type:varchar(255),notnull" json:"url"`
	Region          string    `bun:"region,type:varchar(50)" json:"region"`
	Priority        int       `bun:"priority,type:integer,notnull,default:1" json:"priority"`
	MaxCapacity     int       `bun:"max_capacity,type:integer,notnull" json:"maxCapacity"`
	CurrentLoad     int       `bun:"current_load,type:integer,notnull,default:0" json:"currentLoad"`
	ResponseTimeMs  int       `bun:"response_time_ms,type:integer,notnull,default:0" json:"responseTimeMs"`
	IsActive        bool      `bun:"is_active,type:boolean,notnull" json:"isActive"`
	IsHealthy       bool      `bun:"is_healthy,type:boolean,notnull" json:"isHealthy"`
	LastHealthCheck time.Time `bun:"last_health_check,type:timestamptz,notnull" json:"lastHealthCheck"`
	CreatedAt       time.Time `bun:"created_at,type:timestamptz,notnull" json:"createdAt"`
	UpdatedAt       time.Time `bun:"updated_at,type:timestamptz,notnull" json:"updatedAt"`
}

// IsEligible verifica se o servidor pode receber novos dispositivos
func (s *BackendServer) IsEligible() bool {
	return s.IsActive && s.IsHealthy && s.CurrentLoad < s.MaxCapacity
}

// IsStale verifica se o último health check é mais antigo que o limite
func (s *BackendServer) IsStale(now time.Time, limit time.Duration) bool {
	return now.Sub(s.LastHealthCheck) > limit
}

// Better define a ordem de preferência entre dois servidores elegíveis:
// prioridade desc, carga asc, tempo de resposta asc, id lexicográfico.
func (s *BackendServer) Better(other *BackendServer) bool {
	if s.Priority != other.Priority {
		return s.Priority > other.Priority
	}
	if s.CurrentLoad != other.CurrentLoad {
		return s.CurrentLoad < other.CurrentLoad
	}
	if s.ResponseTimeMs != other.ResponseTimeMs {
		return s.ResponseTimeMs < other.ResponseTimeMs
	}
	return s.ID < other.ID
}
