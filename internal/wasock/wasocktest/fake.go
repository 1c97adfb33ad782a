// Package wasocktest fornece implementações controláveis do contrato
// wasock para uso em testes do núcleo.
package wasocktest

import (
	"context"
	"sync"

	"wafleet/internal/wasock"
)

// SentMessage registra uma chamada a SendMessage
type SentMessage struct {
	JID     string
	Message *wasock.Message
}

// FakeSocket é um socket controlável pelo teste. Eventos são emitidos
// explicitamente via EmitOpen/EmitClose/EmitQR/EmitCreds.
type FakeSocket struct {
	mu sync.Mutex

	ConnectErr  error
	PairingCode string
	PairingErr  error
	SendErr     error
	GroupsErr   error
	Groups      []wasock.GroupInfo
	Registered  map[string]bool
	Names       map[string]string

	events       chan any
	state        wasock.SocketState
	sent         []SentMessage
	connectCalls int
	pairingCalls int
	loggedOut    bool
	ended        bool
}

// NewFakeSocket cria um socket com buffer de eventos suficiente para
// testes síncronos
func NewFakeSocket() *FakeSocket {
	return &FakeSocket{
		events: make(chan any, 64),
		state:  wasock.SocketState{SupportsPairing: true},
	}
}

func (f *FakeSocket) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	return nil
}

func (f *FakeSocket) Events() <-chan any { return f.events }

func (f *FakeSocket) State() wasock.SocketState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetState substitui o estado instantâneo reportado por State
func (f *FakeSocket) SetState(s wasock.SocketState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *FakeSocket) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairingCalls++
	if f.PairingErr != nil {
		return "", f.PairingErr
	}
	return f.PairingCode, nil
}

func (f *FakeSocket) SendMessage(ctx context.Context, jid string, msg *wasock.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, SentMessage{JID: jid, Message: msg})
	return nil
}

func (f *FakeSocket) GroupFetchAllParticipating(ctx context.Context) ([]wasock.GroupInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GroupsErr != nil {
		return nil, f.GroupsErr
	}
	return f.Groups, nil
}

func (f *FakeSocket) OnWhatsApp(ctx context.Context, phones ...string) ([]wasock.ContactCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wasock.ContactCheck, 0, len(phones))
	for _, p := range phones {
		out = append(out, wasock.ContactCheck{
			Query:      p,
			JID:        p + "@s.whatsapp.net",
			Registered: f.Registered == nil || f.Registered[p],
		})
	}
	return out, nil
}

func (f *FakeSocket) ContactName(ctx context.Context, jid string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Names[jid]
}

func (f *FakeSocket) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = true
	return nil
}

func (f *FakeSocket) End() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ended {
		f.ended = true
		close(f.events)
	}
	return nil
}

// EmitOpen emite um ConnectionUpdate com conexão aberta
func (f *FakeSocket) EmitOpen() {
	f.mu.Lock()
	f.state.WebsocketOpen = true
	f.mu.Unlock()
	f.events <- wasock.ConnectionUpdate{Connection: wasock.ConnectionOpen}
}

// EmitClose emite um fechamento com o código e flag de logout informados
func (f *FakeSocket) EmitClose(code wasock.DisconnectCode, loggedOut bool) {
	f.mu.Lock()
	f.state.WebsocketOpen = false
	f.mu.Unlock()
	f.events <- wasock.ConnectionUpdate{
		Connection:     wasock.ConnectionClose,
		LastDisconnect: &wasock.Disconnect{Code: code, LoggedOut: loggedOut},
	}
}

// EmitQR emite um ConnectionUpdate carregando payload de QR
func (f *FakeSocket) EmitQR(payload string) {
	f.events <- wasock.ConnectionUpdate{Connection: wasock.ConnectionConnecting, QR: payload}
}

// EmitCreds emite um CredsUpdate
func (f *FakeSocket) EmitCreds() {
	f.events <- wasock.CredsUpdate{}
}

// EmitMessage emite um MessagesUpsert
func (f *FakeSocket) EmitMessage(m wasock.MessagesUpsert) {
	f.events <- m
}

// Sent retorna as mensagens enviadas até o momento
func (f *FakeSocket) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// ConnectCalls retorna quantas vezes Connect foi chamado
func (f *FakeSocket) ConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

// PairingCalls retorna quantas vezes RequestPairingCode foi chamado
func (f *FakeSocket) PairingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pairingCalls
}

// Ended informa se End foi chamado
func (f *FakeSocket) Ended() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ended
}

// LoggedOut informa se Logout foi chamado
func (f *FakeSocket) LoggedOut() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedOut
}

// FakeFactory fabrica FakeSockets e registra as configurações recebidas
type FakeFactory struct {
	mu sync.Mutex

	NewSocketErr error

	// Prepare, quando definido, ajusta cada socket recém-criado antes
	// de devolvê-lo ao chamador
	Prepare func(s *FakeSocket, cfg wasock.Config)

	sockets []*FakeSocket
	configs []wasock.Config
}

func NewFakeFactory() *FakeFactory { return &FakeFactory{} }

func (f *FakeFactory) NewSocket(ctx context.Context, cfg wasock.Config) (wasock.Socket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NewSocketErr != nil {
		return nil, f.NewSocketErr
	}
	s := NewFakeSocket()
	if cfg.AuthState != nil && cfg.AuthState.Creds() != nil {
		s.state.HasAuthState = true
		s.state.SupportsPairing = !cfg.AuthState.Creds().Registered
		if me := cfg.AuthState.Creds().Me; me != nil {
			s.state.BoundJID = me.JID
			s.state.BoundName = me.Name
		}
	}
	if f.Prepare != nil {
		f.Prepare(s, cfg)
	}
	f.sockets = append(f.sockets, s)
	f.configs = append(f.configs, cfg)
	return s, nil
}

// Sockets retorna os sockets criados, na ordem de criação
func (f *FakeFactory) Sockets() []*FakeSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeSocket, len(f.sockets))
	copy(out, f.sockets)
	return out
}

// Last retorna o socket mais recente, ou nil
func (f *FakeFactory) Last() *FakeSocket {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sockets) == 0 {
		return nil
	}
	return f.sockets[len(f.sockets)-1]
}

// Configs retorna as configurações recebidas por NewSocket
func (f *FakeFactory) Configs() []wasock.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wasock.Config, len(f.configs))
	copy(out, f.configs)
	return out
}
