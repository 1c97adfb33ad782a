package meow

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
)

// meowSocket adapta um *whatsmeow.Client à superfície wasock.Socket.
// A tradução de eventos roda no handler da biblioteca e publica no
// canal próprio, mantendo a entrega serializada por socket.
type meowSocket struct {
	client  *whatsmeow.Client
	log     logger.Logger
	debugQR bool

	mu        sync.Mutex
	events    chan any
	handlerID uint32
	ended     bool
}

func newSocket(client *whatsmeow.Client, debugQR bool, log logger.Logger) *meowSocket {
	s := &meowSocket{
		client:  client,
		log:     log,
		debugQR: debugQR,
		events:  make(chan any, 32),
	}
	s.handlerID = client.AddEventHandler(s.translate)
	return s
}

// Connect abre o websocket. Para devices ainda não pareados o canal de
// QR é solicitado antes da conexão e seus payloads são reemitidos como
// ConnectionUpdate.
func (s *meowSocket) Connect(ctx context.Context) error {
	if s.client.Store.ID == nil {
		qrChan, err := s.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to open qr channel: %w", err)
		}
		go s.forwardQR(qrChan)
	}

	s.publish(wasock.ConnectionUpdate{Connection: wasock.ConnectionConnecting})
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect websocket: %w", err)
	}
	return nil
}

func (s *meowSocket) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			if s.debugQR {
				qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			}
			s.publish(wasock.ConnectionUpdate{
				Connection: wasock.ConnectionConnecting,
				QR:         item.Code,
			})
		case "timeout":
			s.publish(wasock.ConnectionUpdate{
				Connection: wasock.ConnectionClose,
				LastDisconnect: &wasock.Disconnect{
					Code:    wasock.CodeConnectionLost,
					Message: "qr scan timed out",
				},
			})
		}
	}
}

// translate converte eventos whatsmeow na taxonomia wasock
func (s *meowSocket) translate(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		s.publish(wasock.CredsUpdate{})
		s.publish(wasock.ConnectionUpdate{Connection: wasock.ConnectionOpen})

	case *events.PairSuccess:
		s.publish(wasock.CredsUpdate{})

	case *events.Disconnected:
		s.publish(wasock.ConnectionUpdate{
			Connection: wasock.ConnectionClose,
			LastDisconnect: &wasock.Disconnect{
				Code:    wasock.CodeConnectionLost,
				Message: "websocket disconnected",
			},
		})

	case *events.LoggedOut:
		s.publish(wasock.ConnectionUpdate{
			Connection: wasock.ConnectionClose,
			LastDisconnect: &wasock.Disconnect{
				Code:      wasock.CodeAuthFailure,
				Message:   fmt.Sprintf("logged out by device (reason %d)", int(e.Reason)),
				LoggedOut: true,
			},
		})

	case *events.StreamReplaced:
		s.publish(wasock.ConnectionUpdate{
			Connection: wasock.ConnectionClose,
			LastDisconnect: &wasock.Disconnect{
				Code:    wasock.CodeStreamConflict,
				Message: "stream replaced by another connection",
			},
		})

	case *events.StreamError:
		code := wasock.CodeServiceUnavailable
		if e.Code == "515" {
			code = wasock.CodeRestartRequired
		}
		s.publish(wasock.ConnectionUpdate{
			Connection: wasock.ConnectionClose,
			LastDisconnect: &wasock.Disconnect{
				Code:    code,
				Message: fmt.Sprintf("stream error %s", e.Code),
			},
		})

	case *events.ConnectFailure:
		s.publish(wasock.ConnectionUpdate{
			Connection: wasock.ConnectionClose,
			LastDisconnect: &wasock.Disconnect{
				Code:    wasock.DisconnectCode(int(e.Reason)),
				Message: fmt.Sprintf("connect failure: %s", e.Reason.String()),
			},
		})

	case *events.ClientOutdated:
		s.publish(wasock.ConnectionUpdate{
			Connection: wasock.ConnectionClose,
			LastDisconnect: &wasock.Disconnect{
				Code:    wasock.CodeMethodNotAllowed,
				Message: "client version rejected by upstream",
			},
		})

	case *events.TemporaryBan:
		s.publish(wasock.ConnectionUpdate{
			Connection: wasock.ConnectionClose,
			LastDisconnect: &wasock.Disconnect{
				Code:    wasock.CodeServiceUnavailable,
				Message: fmt.Sprintf("temporary ban: %s", e.String()),
			},
		})

	case *events.Message:
		if e.Info.IsFromMe {
			return
		}
		s.publish(wasock.MessagesUpsert{
			ChatJID:   e.Info.Chat.String(),
			SenderJID: e.Info.Sender.String(),
			PushName:  e.Info.PushName,
			Text:      extractText(e.Message),
			Timestamp: e.Info.Timestamp,
		})
	}
}

func extractText(msg *waProto.Message) string {
	if msg == nil {
		return ""
	}
	if t := msg.GetConversation(); t != "" {
		return t
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

// publish entrega o evento sem bloquear indefinidamente um consumidor
// ausente; sockets encerrados descartam eventos tardios
func (s *meowSocket) publish(evt any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	select {
	case s.events <- evt:
	default:
		s.log.WithField("event", fmt.Sprintf("%T", evt)).Warn().Msg("Event buffer full, dropping event")
	}
}

func (s *meowSocket) Events() <-chan any { return s.events }

func (s *meowSocket) State() wasock.SocketState {
	state := wasock.SocketState{
		WebsocketOpen:   s.client.IsConnected(),
		HasAuthState:    true,
		SupportsPairing: s.client.Store.ID == nil,
	}
	if jid := s.client.Store.ID; jid != nil {
		state.BoundJID = jid.String()
		state.BoundName = s.client.Store.PushName
	}
	return state
}

func (s *meowSocket) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	if s.client.Store.ID != nil {
		return "", fmt.Errorf("device already paired as %s", s.client.Store.ID.String())
	}
	code, err := s.client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", fmt.Errorf("failed to request pairing code: %w", err)
	}
	return code, nil
}

func (s *meowSocket) SendMessage(ctx context.Context, jid string, msg *wasock.Message) error {
	recipient, err := types.ParseJID(jid)
	if err != nil {
		return fmt.Errorf("invalid recipient JID %s: %w", jid, err)
	}

	waMsg, err := s.buildMessage(ctx, msg)
	if err != nil {
		return err
	}

	if _, err := s.client.SendMessage(ctx, recipient, waMsg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (s *meowSocket) buildMessage(ctx context.Context, msg *wasock.Message) (*waProto.Message, error) {
	if msg.Media == nil {
		return &waProto.Message{Conversation: proto.String(msg.Text)}, nil
	}

	var mediaType whatsmeow.MediaType
	switch msg.Media.Kind {
	case wasock.MediaImage:
		mediaType = whatsmeow.MediaImage
	case wasock.MediaVideo:
		mediaType = whatsmeow.MediaVideo
	case wasock.MediaAudio:
		mediaType = whatsmeow.MediaAudio
	case wasock.MediaDocument:
		mediaType = whatsmeow.MediaDocument
	default:
		return nil, fmt.Errorf("unsupported media kind: %s", msg.Media.Kind)
	}

	uploaded, err := s.client.Upload(ctx, msg.Media.Data, mediaType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}

	caption := msg.Caption
	if caption == "" {
		caption = msg.Text
	}

	switch msg.Media.Kind {
	case wasock.MediaImage:
		return &waProto.Message{ImageMessage: &waProto.ImageMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(msg.Media.MimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}, nil
	case wasock.MediaVideo:
		return &waProto.Message{VideoMessage: &waProto.VideoMessage{
			Caption:       proto.String(caption),
			Mimetype:      proto.String(msg.Media.MimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}, nil
	case wasock.MediaAudio:
		return &waProto.Message{AudioMessage: &waProto.AudioMessage{
			Mimetype:      proto.String(msg.Media.MimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}, nil
	default:
		return &waProto.Message{DocumentMessage: &waProto.DocumentMessage{
			Caption:       proto.String(caption),
			FileName:      proto.String(msg.Media.FileName),
			Mimetype:      proto.String(msg.Media.MimeType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}}, nil
	}
}

func (s *meowSocket) GroupFetchAllParticipating(ctx context.Context) ([]wasock.GroupInfo, error) {
	groups, err := s.client.GetJoinedGroups()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch joined groups: %w", err)
	}
	out := make([]wasock.GroupInfo, 0, len(groups))
	for _, g := range groups {
		out = append(out, wasock.GroupInfo{
			JID:          g.JID.String(),
			Name:         g.Name,
			Participants: len(g.Participants),
		})
	}
	return out, nil
}

func (s *meowSocket) OnWhatsApp(ctx context.Context, phones ...string) ([]wasock.ContactCheck, error) {
	resp, err := s.client.IsOnWhatsApp(phones)
	if err != nil {
		return nil, fmt.Errorf("failed to check numbers: %w", err)
	}
	out := make([]wasock.ContactCheck, 0, len(resp))
	for _, r := range resp {
		out = append(out, wasock.ContactCheck{
			Query:      r.Query,
			JID:        r.JID.String(),
			Registered: r.IsIn,
		})
	}
	return out, nil
}

func (s *meowSocket) ContactName(ctx context.Context, jid string) string {
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return ""
	}
	info, err := s.client.Store.Contacts.GetContact(ctx, parsed)
	if err != nil || !info.Found {
		return ""
	}
	if info.FullName != "" {
		return info.FullName
	}
	return info.PushName
}

func (s *meowSocket) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// End fecha o socket sem invalidar credenciais. Idempotente.
func (s *meowSocket) End() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.mu.Unlock()

	s.client.RemoveEventHandler(s.handlerID)
	s.client.Disconnect()

	s.mu.Lock()
	close(s.events)
	s.mu.Unlock()
	return nil
}
