// Package eventlog guarda o histórico auditável de eventos de conexão de
// dispositivos e de ações tomadas pela frota.
package eventlog

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConnectionEvent registra uma transição de conexão de um dispositivo
type ConnectionEvent struct {
	bun.BaseModel `bun:"table:device_connection_events,alias:dce"`

	ID        int64                  `bun:"id,pk,autoincrement" json:"id"`
	DeviceID  uuid.UUID              `bun:"device_id,type:uuid,notnull" json:"deviceId"`
	ServerID  string                 `bun:"server_id,type:varchar(128),notnull" json:"serverId"`
	EventType string                 `bun:"event_type,type:varchar(50),notnull" json:"eventType"`
	Detail    map[string]interface{} `bun:"detail,type:jsonb" json:"detail,omitempty"`
	CreatedAt time.Time              `bun:"created_at,type:timestamptz,notnull" json:"createdAt"`
}

// ServerAction registra uma ação administrativa da frota (claim, release,
// reap, registro no boot)
type ServerAction struct {
	bun.BaseModel `bun:"table:server_action_logs,alias:sal"`

	ID        int64                  `bun:"id,pk,autoincrement" json:"id"`
	ServerID  string                 `bun:"server_id,type:varchar(128),notnull" json:"serverId"`
	Action    string                 `bun:"action,type:varchar(50),notnull" json:"action"`
	Detail    map[string]interface{} `bun:"detail,type:jsonb" json:"detail,omitempty"`
	CreatedAt time.Time              `bun:"created_at,type:timestamptz,notnull" json:"createdAt"`
}
