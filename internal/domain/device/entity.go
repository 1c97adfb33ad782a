package device

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Status representa o status de conexão de um dispositivo
type Status string

const (
	StatusDisconnected   Status = "disconnected"
	StatusConnecting     Status = "connecting"
	StatusWaitingPairing Status = "waiting_pairing"
	StatusConnected      Status = "connected"
	StatusError          Status = "error"
)

// ConnectionMethod representa o método de autenticação do dispositivo
type ConnectionMethod string

const (
	MethodQR      ConnectionMethod = "qr"
	MethodPairing ConnectionMethod = "pairing"
)

// Device representa um dispositivo WhatsApp de um usuário.
//
// Invariantes mantidas pelas operações abaixo:
//   - status=connected implica SessionData não vazio e Phone preenchido;
//   - QRCode e PairingCode são mutuamente exclusivos e ambos limpos ao conectar;
//   - AssignedServerID é nulo ou referencia um servidor registrado.
type Device struct {
	bun.BaseModel `bun:"table:devices,alias:d"`

	ID               uuid.UUID        `bun:"id,pk,type:uuid" json:"id"`
	UserID           uuid.UUID        `bun:"user_id,type:uuid,notnull" json:"userId"`
	Name             string           `bun:"name,type:varchar(100),notnull" json:"name"`
	Status           Status           `bun:"status,type:varchar(20),notnull" json:"status"`
	ConnectionMethod ConnectionMethod `bun:"connection_method,type:varchar(10),notnull" json:"connectionMethod"`
	PairingPhone     string           `bun:"pairing_phone,type:varchar(20)" json:"pairingPhone,omitempty"`
	QRCode           string           `bun:"qr_code,type:text" json:"qrCode,omitempty"`
	PairingCode      string           `bun:"pairing_code,type:varchar(10)" json:"pairingCode,omitempty"`
	Phone            string           `bun:"phone,type:varchar(20)" json:"phone,omitempty"`
	SessionData      []byte           `bun:"session_data,type:bytea" json:"-"`
	SessionSavedAt   *time.Time       `bun:"session_saved_at,type:timestamptz" json:"-"`
	AssignedServerID *string          `bun:"assigned_server_id,type:varchar(128)" json:"assignedServerId,omitempty"`
	ErrorMessage     string           `bun:"error_message,type:text" json:"errorMessage,omitempty"`
	LastConnectedAt  *time.Time       `bun:"last_connected_at,type:timestamptz" json:"lastConnectedAt,omitempty"`
	CreatedAt        time.Time        `bun:"created_at,type:timestamptz,notnull" json:"createdAt"`
	UpdatedAt        time.Time        `bun:"updated_at,type:timestamptz,notnull" json:"updatedAt"`
}

// IsConnected verifica se o dispositivo está conectado
func (d *Device) IsConnected() bool {
	return d.Status == StatusConnected
}

// HasSession verifica se o dispositivo possui credenciais persistidas
func (d *Device) HasSession() bool {
	return len(d.SessionData) > 0
}

// IsAssignedTo verifica se o dispositivo pertence ao servidor informado
func (d *Device) IsAssignedTo(serverID string) bool {
	return d.AssignedServerID != nil && *d.AssignedServerID == serverID
}

// IsUnassigned verifica se o dispositivo não tem servidor atribuído
func (d *Device) IsUnassigned() bool {
	return d.AssignedServerID == nil || *d.AssignedServerID == ""
}

// IsStuckConnecting verifica se o dispositivo está travado em connecting
// há mais tempo que o limite informado
func (d *Device) IsStuckConnecting(now time.Time, limit time.Duration) bool {
	if d.Status != StatusConnecting && d.Status != StatusWaitingPairing {
		return false
	}
	return now.Sub(d.UpdatedAt) > limit
}

// SetConnecting define o status como conectando
func (d *Device) SetConnecting() {
	d.Status = StatusConnecting
	d.ErrorMessage = ""
	d.UpdatedAt = time.Now()
}

// SetQRCode registra um novo payload de QR code. Cada refresh sobrescreve
// o anterior; o código de pareamento é limpo por exclusão mútua.
func (d *Device) SetQRCode(payload string) {
	d.QRCode = payload
	d.PairingCode = ""
	d.UpdatedAt = time.Now()
}

// SetPairingCode registra o código de pareamento formatado e move o
// dispositivo para waiting_pairing. O QR é limpo por exclusão mútua.
func (d *Device) SetPairingCode(code string) {
	d.PairingCode = code
	d.QRCode = ""
	d.Status = StatusWaitingPairing
	d.UpdatedAt = time.Now()
}

// SetConnected marca o dispositivo como conectado, limpando QR e código
// de pareamento e registrando o telefone vinculado e o servidor dono
func (d *Device) SetConnected(phone, serverID string) {
	now := time.Now()
	d.Status = StatusConnected
	d.Phone = phone
	d.QRCode = ""
	d.PairingCode = ""
	d.ErrorMessage = ""
	d.AssignedServerID = &serverID
	d.LastConnectedAt = &now
	d.UpdatedAt = now
}

// SetDisconnected retorna o dispositivo para disconnected. As credenciais
// e o telefone são apagados; a atribuição de servidor é preservada para que
// o dono atual tente reconectar no próximo reconcile.
func (d *Device) SetDisconnected() {
	d.Status = StatusDisconnected
	d.Phone = ""
	d.QRCode = ""
	d.PairingCode = ""
	d.SessionData = nil
	d.SessionSavedAt = nil
	d.UpdatedAt = time.Now()
}

// SetError marca o dispositivo com erro e mensagem associada
func (d *Device) SetError(message string) {
	d.Status = StatusError
	d.ErrorMessage = message
	d.UpdatedAt = time.Now()
}

// WipeAuth limpa credenciais, QR e código de pareamento mantendo o
// dispositivo em connecting (usado em falhas de autenticação 401/405)
func (d *Device) WipeAuth() {
	d.SessionData = nil
	d.SessionSavedAt = nil
	d.QRCode = ""
	d.PairingCode = ""
	d.Status = StatusConnecting
	d.UpdatedAt = time.Now()
}
