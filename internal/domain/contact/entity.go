package contact

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Contact representa um contato do usuário com campos de personalização
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:c"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,notnull" json:"userId"`
	Phone     string    `bun:"phone,type:varchar(20),notnull" json:"phone"`
	Name      string    `bun:"name,type:varchar(100)" json:"name,omitempty"`
	Var1      string    `bun:"var1,type:varchar(255)" json:"var1,omitempty"`
	Var2      string    `bun:"var2,type:varchar(255)" json:"var2,omitempty"`
	Var3      string    `bun:"var3,type:varchar(255)" json:"var3,omitempty"`
	CreatedAt time.Time `bun:"created_at,type:timestamptz,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,type:timestamptz,notnull" json:"updatedAt"`
}
