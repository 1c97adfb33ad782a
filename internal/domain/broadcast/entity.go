package broadcast

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status representa o status de um broadcast.
// As transições formam um DAG: draft -> processing -> {completed, failed, cancelled}.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// DelayMode define como o intervalo entre envios é calculado
type DelayMode string

const (
	// DelayManual usa o BaseDelaySeconds configurado
	DelayManual DelayMode = "manual"

	// DelayAdaptive deriva o intervalo do tamanho da lista de destinatários
	DelayAdaptive DelayMode = "adaptive"
)

// Recipient representa um destinatário com seus slots de personalização
type Recipient struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
	Var1  string `json:"var1,omitempty"`
	Var2  string `json:"var2,omitempty"`
	Var3  string `json:"var3,omitempty"`
}

// PacingConfig controla o ritmo de envio de um broadcast
type PacingConfig struct {
	DelayMode           DelayMode `json:"delayMode"`
	BaseDelaySeconds    int       `json:"baseDelaySeconds"`
	BatchSize           int       `json:"batchSize"`
	PauseBetweenBatches int       `json:"pauseBetweenBatchesSeconds"`
	Randomize           bool      `json:"randomize"`
}

// DefaultBatchSize é o tamanho de lote aplicado quando não configurado
const DefaultBatchSize = 20

// DefaultBatchPause é a pausa entre lotes aplicada quando não configurada
const DefaultBatchPause = 60

// Broadcast representa uma campanha de envio em massa vinculada a um dispositivo
type Broadcast struct {
	bun.BaseModel `bun:"table:broadcasts,alias:b"`

	ID          uuid.UUID    `bun:"id,pk,type:uuid" json:"id"`
	UserID      uuid.UUID    `bun:"user_id,type:uuid,notnull" json:"userId"`
	DeviceID    uuid.UUID    `bun:"device_id,type:uuid,notnull" json:"deviceId"`
	Name        string       `bun:"name,type:varchar(100),notnull" json:"name"`
	Message     string       `bun:"message,type:text,notnull" json:"message"`
	MediaURL    string       `bun:"media_url,type:text" json:"mediaUrl,omitempty"`
	MediaType   string       `bun:"media_type,type:varchar(20)" json:"mediaType,omitempty"`
	Recipients  []Recipient  `bun:"recipients,type:jsonb" json:"recipients"`
	Pacing      PacingConfig `bun:"pacing,type:jsonb" json:"pacing"`
	ScheduledAt *time.Time   `bun:"scheduled_at,type:timestamptz" json:"scheduledAt,omitempty"`
	Status      Status       `bun:"status,type:varchar(20),notnull" json:"status"`
	SentCount   int          `bun:"sent_count,type:integer,notnull,default:0" json:"sentCount"`
	FailedCount int          `bun:"failed_count,type:integer,notnull,default:0" json:"failedCount"`
	CreatedAt   time.Time    `bun:"created_at,type:timestamptz,notnull" json:"createdAt"`
	UpdatedAt   time.Time    `bun:"updated_at,type:timestamptz,notnull" json:"updatedAt"`
}

// IsDue verifica se um rascunho agendado está pronto para promoção
func (b *Broadcast) IsDue(now time.Time) bool {
	return b.Status == StatusDraft && b.ScheduledAt != nil && !b.ScheduledAt.After(now)
}

// IsTerminal verifica se o broadcast chegou a um estado final
func (b *Broadcast) IsTerminal() bool {
	switch b.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// EffectiveBatchSize retorna o tamanho de lote efetivo
func (p PacingConfig) EffectiveBatchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return DefaultBatchSize
}

// EffectiveBatchPause retorna a pausa entre lotes efetiva
func (p PacingConfig) EffectiveBatchPause() time.Duration {
	if p.PauseBetweenBatches > 0 {
		return time.Duration(p.PauseBetweenBatches) * time.Second
	}
	return DefaultBatchPause * time.Second
}
