// Package wasock define o contrato de capacidade da biblioteca de protocolo
// WhatsApp Web consumida pelo núcleo. A biblioteca em si é uma caixa-preta:
// o núcleo depende apenas destas interfaces e dos códigos de desconexão.
package wasock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wafleet/pkg/logger"
)

// DisconnectCode é o código numérico carregado em eventos de desconexão
type DisconnectCode int

const (
	// CodeAuthFailure indica falha de autenticação (credenciais inválidas)
	CodeAuthFailure DisconnectCode = 401

	// CodeMethodNotAllowed indica rejeição de autenticação pelo upstream
	CodeMethodNotAllowed DisconnectCode = 405

	// CodeConnectionLost indica perda transitória de conexão
	CodeConnectionLost DisconnectCode = 408

	// CodeStreamConflict indica que outra conexão assumiu o stream
	CodeStreamConflict DisconnectCode = 440

	// CodeServiceUnavailable indica indisponibilidade temporária do upstream
	CodeServiceUnavailable DisconnectCode = 503

	// CodeRestartRequired indica que a biblioteca pede religação do socket
	// mantendo as credenciais
	CodeRestartRequired DisconnectCode = 515
)

// ConnectionState representa o estado reportado em ConnectionUpdate
type ConnectionState string

const (
	ConnectionConnecting ConnectionState = "connecting"
	ConnectionOpen       ConnectionState = "open"
	ConnectionClose      ConnectionState = "close"
)

// Disconnect descreve o motivo de um fechamento de socket
type Disconnect struct {
	Code    DisconnectCode
	Message string

	// LoggedOut sinaliza logout permanente pelo aparelho; é terminal e
	// distinto de uma falha de autenticação com o mesmo código numérico
	LoggedOut bool
}

// ConnectionUpdate é o evento de ciclo de vida da conexão
type ConnectionUpdate struct {
	Connection     ConnectionState
	QR             string
	LastDisconnect *Disconnect
}

// CredsUpdate sinaliza que as credenciais em memória mudaram e devem
// ser persistidas pelo adaptador de auth state
type CredsUpdate struct{}

// MessagesUpsert entrega mensagens recebidas pelo socket
type MessagesUpsert struct {
	ChatJID   string
	SenderJID string
	PushName  string
	Text      string
	Timestamp time.Time
}

// MediaKind classifica o tipo de mídia de uma mensagem
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

// Media é o conteúdo binário anexado a uma mensagem de saída
type Media struct {
	Kind     MediaKind
	Data     []byte
	MimeType string
	FileName string
}

// Message é o conteúdo composto de uma mensagem de saída
type Message struct {
	Text    string
	Caption string
	Media   *Media
}

// GroupInfo descreve um grupo do qual o dispositivo participa
type GroupInfo struct {
	JID          string `json:"jid"`
	Name         string `json:"name"`
	Participants int    `json:"participants"`
}

// ContactCheck é o resultado de uma verificação onWhatsApp
type ContactCheck struct {
	Query      string
	JID        string
	Registered bool
}

// SocketState é o estado instantâneo do socket, consultado pelo poll de
// prontidão do pareamento
type SocketState struct {
	WebsocketOpen   bool
	HasAuthState    bool
	SupportsPairing bool
	BoundJID        string
	BoundName       string
}

// Socket é a superfície da biblioteca de protocolo consumida pelo núcleo.
// A entrega de eventos é serializada por socket.
type Socket interface {
	// Connect abre o websocket e inicia o handshake
	Connect(ctx context.Context) error

	// Events retorna o stream serializado de eventos do socket:
	// ConnectionUpdate, CredsUpdate e MessagesUpsert
	Events() <-chan any

	// State retorna o estado instantâneo do socket
	State() SocketState

	// RequestPairingCode emite um código de pareamento para o telefone
	// informado. Falha se as credenciais já estiverem registradas.
	RequestPairingCode(ctx context.Context, phone string) (string, error)

	// SendMessage envia o conteúdo composto para o JID informado
	SendMessage(ctx context.Context, jid string, msg *Message) error

	// GroupFetchAllParticipating lista os grupos do dispositivo
	GroupFetchAllParticipating(ctx context.Context) ([]GroupInfo, error)

	// OnWhatsApp verifica quais telefones possuem conta no WhatsApp
	OnWhatsApp(ctx context.Context, phones ...string) ([]ContactCheck, error)

	// ContactName retorna o nome de exibição reportado pelo WhatsApp
	// para o JID, ou vazio quando desconhecido
	ContactName(ctx context.Context, jid string) string

	// Logout encerra a sessão permanentemente no aparelho
	Logout(ctx context.Context) error

	// End fecha o socket sem invalidar credenciais
	End() error
}

// Config parametriza a construção de um socket
type Config struct {
	DeviceID          uuid.UUID
	AuthState         AuthState
	Browser           string
	HandshakeTimeout  time.Duration
	KeepAliveInterval time.Duration
	Logger            logger.Logger
}

// Factory constrói sockets com a versão de protocolo mais recente
type Factory interface {
	NewSocket(ctx context.Context, cfg Config) (Socket, error)
}
