package whatsapp

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"wafleet/internal/domain/device"
	"wafleet/internal/domain/eventlog"
	"wafleet/internal/infra/cache"
	"wafleet/internal/infra/credentials"
	"wafleet/internal/infra/fleet"
	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
	"wafleet/pkg/phone"
)

// Delays de religação por classe de fechamento. O 515 pós-pareamento
// precisa de uma folga maior para o upstream assentar a sessão; quedas
// transitórias religam rápido.
const (
	restartDelay   = 1500 * time.Millisecond
	wipeDelay      = 1 * time.Second
	transientDelay = 500 * time.Millisecond
)

// closeAction é a decisão tomada após um fechamento de socket
type closeAction int

const (
	// actionRelaunch religa o socket mantendo as credenciais
	actionRelaunch closeAction = iota

	// actionWipeRelaunch apaga as credenciais e religa do zero
	actionWipeRelaunch

	// actionTerminal encerra o ciclo sem religação (logout permanente)
	actionTerminal

	// actionAbandon encerra porque outro servidor assumiu o dispositivo
	actionAbandon
)

// Deps agrupa as dependências compartilhadas pelas conexões
type Deps struct {
	Factory           wasock.Factory
	Devices           device.Repository
	Creds             *credentials.Store
	Cache             *cache.Cache
	Fleet             *fleet.Controller
	Audit             eventlog.Repository
	Log               logger.Logger
	HandshakeTimeout  time.Duration
	KeepAliveInterval time.Duration
}

// Connection gerencia o ciclo de vida da conexão de um único dispositivo:
// lançamento do socket, tradução de eventos em transições de status e a
// política de religação por classe de fechamento.
type Connection struct {
	deviceID uuid.UUID
	deps     Deps
	log      logger.Logger

	mu     sync.Mutex
	socket wasock.Socket
	auth   *credentials.AuthState
	open   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewConnection cria o gerenciador de conexão de um dispositivo
func NewConnection(deviceID uuid.UUID, deps Deps) *Connection {
	return &Connection{
		deviceID: deviceID,
		deps:     deps,
		log:      deps.Log.WithComponent("connection").WithField("deviceId", deviceID),
		done:     make(chan struct{}),
	}
}

// Start inicia o ciclo de vida em background
func (c *Connection) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(runCtx)
}

// Stop encerra a conexão e aguarda o ciclo terminar
func (c *Connection) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	if c.socket != nil {
		_ = c.socket.End()
	}
	c.mu.Unlock()

	select {
	case <-c.done:
	case <-time.After(10 * time.Second):
		c.log.Warn().Msg("Timed out waiting for connection loop to stop")
	}
}

// IsOpen informa se o websocket está aberto
func (c *Connection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// DeviceID retorna o dispositivo desta conexão
func (c *Connection) DeviceID() uuid.UUID {
	return c.deviceID
}

// run executa sessões de socket consecutivas até ação terminal ou
// cancelamento do contexto
func (c *Connection) run(ctx context.Context) {
	defer close(c.done)

	for {
		action, delay := c.session(ctx)

		switch action {
		case actionTerminal:
			c.log.Info().Msg("Connection reached terminal state")
			return
		case actionAbandon:
			c.log.Info().Msg("Connection abandoned, device owned elsewhere")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session executa uma vida de socket: lança, consome eventos e devolve a
// decisão de religação quando o socket fecha
func (c *Connection) session(ctx context.Context) (closeAction, time.Duration) {
	state, err := c.deps.Creds.Load(ctx, c.deviceID)
	if err != nil {
		c.log.WithError(err).Error().Msg("Failed to load credentials")
		return actionRelaunch, transientDelay
	}

	auth := credentials.NewAuthState(c.deviceID, state, c.deps.Creds, c.deps.Log)

	socket, err := c.deps.Factory.NewSocket(ctx, wasock.Config{
		DeviceID:          c.deviceID,
		AuthState:         auth,
		Browser:           "Chrome (Linux)",
		HandshakeTimeout:  c.deps.HandshakeTimeout,
		KeepAliveInterval: c.deps.KeepAliveInterval,
		Logger:            c.log,
	})
	if err != nil {
		if ctx.Err() != nil {
			return actionTerminal, 0
		}
		// Falha de construção não se resolve religando: marca o erro e
		// encerra; o próximo reconcile remove a conexão do registro
		c.log.WithError(err).Error().Msg("Failed to build socket")
		c.failPermanently(ctx, "socket construction failed: "+err.Error())
		return actionTerminal, 0
	}

	c.mu.Lock()
	c.socket = socket
	c.auth = auth
	c.open = false
	c.mu.Unlock()

	if err := socket.Connect(ctx); err != nil {
		c.log.WithError(err).Warn().Msg("Socket connect failed")
		_ = socket.End()
		c.clearSocket()
		return actionRelaunch, transientDelay
	}

	// Dispositivos com método pairing recebem o código automaticamente
	go c.maybeRequestPairing(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = socket.End()
			c.clearSocket()
			return actionTerminal, 0

		case evt, ok := <-socket.Events():
			if !ok {
				// Socket encerrado externamente (Stop)
				c.clearSocket()
				return actionTerminal, 0
			}

			switch e := evt.(type) {
			case wasock.ConnectionUpdate:
				if action, delay, closed := c.handleConnectionUpdate(ctx, socket, e); closed {
					_ = socket.End()
					c.clearSocket()
					return action, delay
				}

			case wasock.CredsUpdate:
				c.mirrorBinding(ctx, socket, auth)
				auth.Save(ctx)

			case wasock.MessagesUpsert:
				c.log.WithFields(map[string]interface{}{
					"chat":     e.ChatJID,
					"pushName": e.PushName,
				}).Debug().Msg("Inbound message received")
			}
		}
	}
}

// handleConnectionUpdate processa um ConnectionUpdate; closed indica que o
// socket fechou e a sessão deve terminar com a ação retornada
func (c *Connection) handleConnectionUpdate(ctx context.Context, socket wasock.Socket, e wasock.ConnectionUpdate) (closeAction, time.Duration, bool) {
	switch e.Connection {
	case wasock.ConnectionConnecting:
		if e.QR != "" {
			c.onQR(ctx, e.QR)
		}
		return 0, 0, false

	case wasock.ConnectionOpen:
		c.onOpen(ctx, socket)
		return 0, 0, false

	case wasock.ConnectionClose:
		action, delay := c.onClose(ctx, e.LastDisconnect)
		return action, delay, true
	}
	return 0, 0, false
}

// onQR registra o payload de QR mais recente no banco e no cache
func (c *Connection) onQR(ctx context.Context, payload string) {
	dev, err := c.deps.Devices.GetByID(ctx, c.deviceID)
	if err != nil {
		c.log.WithError(err).Error().Msg("Failed to load device for QR update")
		return
	}

	dev.SetQRCode(payload)
	if err := c.deps.Devices.Update(ctx, dev); err != nil {
		c.log.WithError(err).Error().Msg("Failed to persist QR code")
	}

	if c.deps.Cache != nil {
		if err := c.deps.Cache.Set(ctx, cache.KeyQRCode(c.deviceID), payload, cache.TTLQRCode); err != nil {
			c.log.WithError(err).Warn().Msg("Failed to cache QR code")
		}
	}

	c.recordEvent(ctx, "qr_refreshed", nil)
	c.log.Debug().Msg("QR code refreshed")
}

// onOpen marca o dispositivo como conectado e espelha o vínculo nas
// credenciais persistidas
func (c *Connection) onOpen(ctx context.Context, socket wasock.Socket) {
	c.mu.Lock()
	c.open = true
	auth := c.auth
	c.mu.Unlock()

	c.mirrorBinding(ctx, socket, auth)

	state := socket.State()
	boundPhone := phone.BareNumber(state.BoundJID)

	dev, err := c.deps.Devices.GetByID(ctx, c.deviceID)
	if err != nil {
		c.log.WithError(err).Error().Msg("Failed to load device on open")
		return
	}

	dev.SetConnected(boundPhone, c.deps.Fleet.ServerID())
	if err := c.deps.Devices.Update(ctx, dev); err != nil {
		c.log.WithError(err).Error().Msg("Failed to persist connected status")
	}

	if c.deps.Cache != nil {
		_ = c.deps.Cache.Delete(ctx, cache.KeyQRCode(c.deviceID), cache.KeyPairingCode(c.deviceID))
	}

	c.recordEvent(ctx, "connected", map[string]interface{}{"phone": boundPhone})
	c.log.WithField("phone", boundPhone).Info().Msg("Device connected")
}

// onClose classifica o fechamento e aplica os efeitos colaterais de cada
// classe antes de decidir a religação
func (c *Connection) onClose(ctx context.Context, d *wasock.Disconnect) (closeAction, time.Duration) {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()

	code := wasock.DisconnectCode(0)
	message := "connection closed"
	if d != nil {
		code = d.Code
		if d.Message != "" {
			message = d.Message
		}
	}

	log := c.log.WithFields(map[string]interface{}{
		"code":   int(code),
		"reason": message,
	})
	c.recordEvent(ctx, "disconnected", map[string]interface{}{
		"code":   int(code),
		"reason": message,
	})

	switch {
	case d != nil && d.LoggedOut:
		// Logout permanente pelo aparelho: apaga credenciais e encerra
		log.Warn().Msg("Device logged out permanently")
		c.wipeAndDisconnect(ctx)
		return actionTerminal, 0

	case code == wasock.CodeAuthFailure || code == wasock.CodeMethodNotAllowed:
		// Credenciais rejeitadas: religa do zero para novo pareamento
		log.Warn().Msg("Auth rejected, wiping credentials for fresh pairing")
		c.wipeForRetry(ctx)
		return actionWipeRelaunch, wipeDelay

	case code == wasock.CodeRestartRequired:
		log.Debug().Msg("Restart required by protocol")
		return actionRelaunch, restartDelay

	case code == wasock.CodeStreamConflict:
		// Outra conexão assumiu o stream; só religa se este servidor
		// ainda for o dono do dispositivo
		if err := c.deps.Fleet.ValidateOwnership(ctx, c.deviceID); err != nil {
			log.WithError(err).Warn().Msg("Stream conflict and ownership lost, abandoning")
			return actionAbandon, 0
		}
		log.Warn().Msg("Stream conflict, relaunching as current owner")
		return actionRelaunch, transientDelay

	default:
		log.Info().Msg("Transient disconnect, relaunching")
		return actionRelaunch, transientDelay
	}
}

// mirrorBinding copia o vínculo reportado pelo socket para as credenciais
func (c *Connection) mirrorBinding(ctx context.Context, socket wasock.Socket, auth *credentials.AuthState) {
	if auth == nil {
		return
	}
	state := socket.State()
	if state.BoundJID == "" {
		return
	}
	creds := auth.Creds()
	if creds.Registered && creds.Me != nil && creds.Me.JID == state.BoundJID {
		return
	}
	auth.MarkRegistered(ctx, state.BoundJID, state.BoundName)
}

// failPermanently marca o dispositivo com erro; dispositivos em erro só
// religam por pedido explícito do usuário
func (c *Connection) failPermanently(ctx context.Context, message string) {
	dev, err := c.deps.Devices.GetByID(ctx, c.deviceID)
	if err != nil {
		c.log.WithError(err).Error().Msg("Failed to load device for error status")
		return
	}
	dev.SetError(message)
	if err := c.deps.Devices.Update(ctx, dev); err != nil {
		c.log.WithError(err).Error().Msg("Failed to persist error status")
	}
}

// wipeAndDisconnect apaga credenciais e devolve o dispositivo a disconnected
func (c *Connection) wipeAndDisconnect(ctx context.Context) {
	if err := c.deps.Creds.Wipe(ctx, c.deviceID); err != nil {
		c.log.WithError(err).Error().Msg("Failed to wipe credentials")
	}

	dev, err := c.deps.Devices.GetByID(ctx, c.deviceID)
	if err != nil {
		c.log.WithError(err).Error().Msg("Failed to load device for logout wipe")
		return
	}
	dev.SetDisconnected()
	if err := c.deps.Devices.Update(ctx, dev); err != nil {
		c.log.WithError(err).Error().Msg("Failed to persist disconnected status")
	}
	if c.deps.Cache != nil {
		_ = c.deps.Cache.Delete(ctx, cache.KeyQRCode(c.deviceID), cache.KeyPairingCode(c.deviceID))
	}
}

// wipeForRetry apaga credenciais mantendo o dispositivo em connecting
func (c *Connection) wipeForRetry(ctx context.Context) {
	if err := c.deps.Creds.Wipe(ctx, c.deviceID); err != nil {
		c.log.WithError(err).Error().Msg("Failed to wipe credentials")
	}

	dev, err := c.deps.Devices.GetByID(ctx, c.deviceID)
	if err != nil {
		c.log.WithError(err).Error().Msg("Failed to load device for auth wipe")
		return
	}
	dev.WipeAuth()
	if err := c.deps.Devices.Update(ctx, dev); err != nil {
		c.log.WithError(err).Error().Msg("Failed to persist auth wipe")
	}
	if c.deps.Cache != nil {
		_ = c.deps.Cache.Delete(ctx, cache.KeyQRCode(c.deviceID), cache.KeyPairingCode(c.deviceID))
	}
}

func (c *Connection) clearSocket() {
	c.mu.Lock()
	c.socket = nil
	c.open = false
	c.mu.Unlock()
}

// liveSocket retorna o socket corrente ou erro quando ausente
func (c *Connection) liveSocket() (wasock.Socket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil {
		return nil, device.NewDeviceError(c.deviceID, "socket", device.ErrSocketNotFound)
	}
	return c.socket, nil
}

// SendMessage envia uma mensagem pelo socket desta conexão
func (c *Connection) SendMessage(ctx context.Context, jid string, msg *wasock.Message) error {
	if !c.IsOpen() {
		return device.NewDeviceError(c.deviceID, "send", device.ErrDeviceNotConnected)
	}
	socket, err := c.liveSocket()
	if err != nil {
		return err
	}
	return socket.SendMessage(ctx, jid, msg)
}

// Groups lista os grupos do dispositivo
func (c *Connection) Groups(ctx context.Context) ([]wasock.GroupInfo, error) {
	if !c.IsOpen() {
		return nil, device.NewDeviceError(c.deviceID, "groups", device.ErrDeviceNotConnected)
	}
	socket, err := c.liveSocket()
	if err != nil {
		return nil, err
	}
	return socket.GroupFetchAllParticipating(ctx)
}

// OnWhatsApp verifica quais telefones possuem conta no WhatsApp
func (c *Connection) OnWhatsApp(ctx context.Context, phones ...string) ([]wasock.ContactCheck, error) {
	if !c.IsOpen() {
		return nil, device.NewDeviceError(c.deviceID, "onwhatsapp", device.ErrDeviceNotConnected)
	}
	socket, err := c.liveSocket()
	if err != nil {
		return nil, err
	}
	return socket.OnWhatsApp(ctx, phones...)
}

// ContactName retorna o nome de exibição de um JID, se conhecido
func (c *Connection) ContactName(ctx context.Context, jid string) string {
	socket, err := c.liveSocket()
	if err != nil {
		return ""
	}
	return socket.ContactName(ctx, jid)
}

// Logout encerra a sessão permanentemente e apaga as credenciais
func (c *Connection) Logout(ctx context.Context) error {
	socket, err := c.liveSocket()
	if err != nil {
		return err
	}
	if err := socket.Logout(ctx); err != nil {
		return err
	}
	c.wipeAndDisconnect(ctx)
	c.recordEvent(ctx, "logout", nil)
	return nil
}

// recordEvent grava o evento de conexão em modo best-effort
func (c *Connection) recordEvent(ctx context.Context, eventType string, detail map[string]interface{}) {
	if c.deps.Audit == nil {
		return
	}
	err := c.deps.Audit.RecordConnection(ctx, &eventlog.ConnectionEvent{
		DeviceID:  c.deviceID,
		ServerID:  c.deps.Fleet.ServerID(),
		EventType: eventType,
		Detail:    detail,
	})
	if err != nil {
		c.log.WithError(err).Debug().Msg("Failed to record connection event")
	}
}

// isRateLimitError reconhece respostas de rate limit do upstream
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") || strings.Contains(msg, "429") || strings.Contains(msg, "too many")
}
