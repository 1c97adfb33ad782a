package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"wafleet/internal/domain/broadcast"
	"wafleet/internal/domain/contact"
	"wafleet/internal/domain/device"
	"wafleet/internal/infra/cache"
	"wafleet/internal/infra/media"
	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
	"wafleet/pkg/phone"
)

// failureSleep é a pausa aplicada após cada envio com falha
const failureSleep = 1 * time.Second

// Sender é a visão que o worker tem de uma conexão de dispositivo
type Sender interface {
	IsOpen() bool
	SendMessage(ctx context.Context, jid string, msg *wasock.Message) error
	ContactName(ctx context.Context, jid string) string
	OnWhatsApp(ctx context.Context, phones ...string) ([]wasock.ContactCheck, error)
}

// SenderRegistry resolve a conexão viva de um dispositivo neste servidor
type SenderRegistry interface {
	Lookup(deviceID uuid.UUID) (Sender, bool)
}

// Worker consome tarefas de despacho e percorre a lista de destinatários
// aplicando personalização, ritmo e checkpoints. Invariante de
// conservação: ao final, sent + failed é igual ao total de destinatários.
type Worker struct {
	broadcasts broadcast.Repository
	contacts   contact.Repository
	devices    device.Repository
	registry   SenderRegistry
	fetcher    *media.Fetcher
	images     *media.ImageProcessor
	cache      *cache.Cache
	log        logger.Logger

	// sleep é injetável para os testes não esperarem o ritmo real
	sleep func(ctx context.Context, d time.Duration) error
}

// NewWorker cria o worker de despacho de broadcasts
func NewWorker(
	broadcasts broadcast.Repository,
	contacts contact.Repository,
	devices device.Repository,
	registry SenderRegistry,
	fetcher *media.Fetcher,
	images *media.ImageProcessor,
	c *cache.Cache,
	log logger.Logger,
) *Worker {
	return &Worker{
		broadcasts: broadcasts,
		contacts:   contacts,
		devices:    devices,
		registry:   registry,
		fetcher:    fetcher,
		images:     images,
		cache:      c,
		log:        log.WithComponent("broadcast-worker"),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HandleDispatch é o handler asynq da tarefa broadcast:dispatch
func (w *Worker) HandleDispatch(ctx context.Context, t *asynq.Task) error {
	var payload DispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// Payload ilegível nunca vai funcionar: descarta sem retry
		w.log.WithError(err).Error().Msg("Dropping dispatch task with malformed payload")
		return fmt.Errorf("malformed payload: %v: %w", err, asynq.SkipRetry)
	}
	return w.Run(ctx, payload.BroadcastID)
}

// Run executa (ou retoma) o despacho de um broadcast
func (w *Worker) Run(ctx context.Context, broadcastID uuid.UUID) error {
	log := w.log.WithField("broadcastId", broadcastID)

	b, err := w.broadcasts.GetByID(ctx, broadcastID)
	if err != nil {
		if err == broadcast.ErrBroadcastNotFound {
			log.Warn().Msg("Broadcast vanished, dropping dispatch")
			return nil
		}
		return err
	}

	if b.IsTerminal() || b.Status != broadcast.StatusProcessing {
		log.WithField("status", b.Status).Debug().Msg("Broadcast not dispatchable, skipping")
		return nil
	}

	conn, ok := w.registry.Lookup(b.DeviceID)
	if !ok || !conn.IsOpen() {
		w.flagDeviceForReconnect(ctx, b.DeviceID)
		return fmt.Errorf("device %s has no open connection on this server", b.DeviceID)
	}

	tpl := Compile(b.Message)
	mediaAttachment := w.resolveMedia(ctx, b, log)
	registered := w.checkRecipients(ctx, conn, b.Recipients, log)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	total := len(b.Recipients)
	sent, failed := b.SentCount, b.FailedCount
	start := sent + failed
	if start > total {
		start = total
	}
	if start > 0 {
		log.WithField("resumeAt", start).Info().Msg("Resuming broadcast from checkpoint")
	}

	for i := start; i < total; i++ {
		// Cancelamento é observado na fronteira entre destinatários
		status, err := w.broadcasts.GetStatus(ctx, broadcastID)
		if err != nil {
			log.WithError(err).Warn().Msg("Failed to check broadcast status")
		} else if status == broadcast.StatusCancelled {
			log.WithFields(map[string]interface{}{"sent": sent, "failed": failed}).
				Info().Msg("Broadcast cancelled, stopping at recipient boundary")
			return w.broadcasts.Finish(ctx, broadcastID, broadcast.StatusCancelled, sent, failed)
		}

		if err := ctx.Err(); err != nil {
			// Shutdown ou timeout: checkpoint e deixa o retry retomar
			if cerr := w.broadcasts.UpdateCounters(ctx, broadcastID, sent, failed); cerr != nil {
				log.WithError(cerr).Warn().Msg("Failed to checkpoint before interruption")
			}
			return err
		}

		if w.sendOne(ctx, conn, b, tpl, b.Recipients[i], mediaAttachment, registered, rng, log) {
			sent++
		} else {
			failed++
			_ = w.sleep(ctx, failureSleep)
		}

		processed := i + 1
		if processed >= total {
			break
		}

		// A pausa de lote se soma ao intervalo base entre envios
		if IsBatchBoundary(processed, b.Pacing.EffectiveBatchSize()) {
			if err := w.broadcasts.UpdateCounters(ctx, broadcastID, sent, failed); err != nil {
				log.WithError(err).Warn().Msg("Failed to checkpoint at batch boundary")
			}
			_ = w.sleep(ctx, b.Pacing.EffectiveBatchPause())
		}
		_ = w.sleep(ctx, NextDelay(b.Pacing, total, rng))
	}

	final := broadcast.StatusCompleted
	if total > 0 && sent == 0 {
		final = broadcast.StatusFailed
	}

	log.WithFields(map[string]interface{}{
		"sent":   sent,
		"failed": failed,
		"total":  total,
		"status": final,
	}).Info().Msg("Broadcast finished")

	return w.broadcasts.Finish(ctx, broadcastID, final, sent, failed)
}

// sendOne envia para um destinatário; retorna true em caso de sucesso
func (w *Worker) sendOne(
	ctx context.Context,
	conn Sender,
	b *broadcast.Broadcast,
	tpl *Template,
	r broadcast.Recipient,
	attachment *wasock.Media,
	registered map[string]bool,
	rng *rand.Rand,
	log logger.Logger,
) bool {
	normalized, err := phone.Normalize(r.Phone)
	if err != nil {
		log.WithField("phone", r.Phone).WithError(err).Warn().Msg("Skipping invalid recipient phone")
		return false
	}
	if known, checked := registered[normalized]; checked && !known {
		log.WithField("phone", normalized).Warn().Msg("Skipping recipient without WhatsApp account")
		return false
	}
	jid := phone.UserJID(normalized)

	data := RenderData{
		ContactName: r.Name,
		Phone:       normalized,
		Var1:        r.Var1,
		Var2:        r.Var2,
		Var3:        r.Var3,
		Now:         time.Now(),
	}

	// O cadastro de contatos preenche os campos que o destinatário não trouxe
	if stored := w.resolveContact(ctx, b.UserID, normalized); stored != nil {
		if data.ContactName == "" {
			data.ContactName = stored.Name
		}
		if data.Var1 == "" {
			data.Var1 = stored.Var1
		}
		if data.Var2 == "" {
			data.Var2 = stored.Var2
		}
		if data.Var3 == "" {
			data.Var3 = stored.Var3
		}
	}

	data.PushName = conn.ContactName(ctx, jid)

	text := tpl.Render(data, rng)

	msg := &wasock.Message{Text: text}
	if attachment != nil {
		msg.Media = attachment
		msg.Caption = text
	}

	if err := conn.SendMessage(ctx, jid, msg); err != nil {
		log.WithField("phone", normalized).WithError(err).Warn().Msg("Send failed")
		return false
	}
	return true
}

// checkRecipients faz a verificação onWhatsApp da lista em lote. A checagem
// é best-effort: qualquer falha retorna nil e todos os destinatários seguem
// para o envio normal.
func (w *Worker) checkRecipients(ctx context.Context, conn Sender, recipients []broadcast.Recipient, log logger.Logger) map[string]bool {
	phones := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if normalized, err := phone.Normalize(r.Phone); err == nil {
			phones = append(phones, normalized)
		}
	}
	if len(phones) == 0 {
		return nil
	}

	checks, err := conn.OnWhatsApp(ctx, phones...)
	if err != nil {
		log.WithError(err).Debug().Msg("Recipient existence check failed, sending to all")
		return nil
	}

	registered := make(map[string]bool, len(checks))
	for _, check := range checks {
		registered[check.Query] = check.Registered
	}
	return registered
}

// resolveMedia busca a mídia do broadcast uma única vez; falha degrada o
// envio para somente texto
func (w *Worker) resolveMedia(ctx context.Context, b *broadcast.Broadcast, log logger.Logger) *wasock.Media {
	if b.MediaURL == "" || w.fetcher == nil {
		return nil
	}

	asset, err := w.fetcher.Fetch(ctx, b.MediaURL)
	if err != nil {
		log.WithError(err).Warn().Msg("Media fetch failed, falling back to text-only")
		return nil
	}

	kind := wasock.MediaKind(b.MediaType)
	switch kind {
	case wasock.MediaImage, wasock.MediaVideo, wasock.MediaAudio, wasock.MediaDocument:
	default:
		kind = wasock.MediaImage
	}

	data, mimeType := asset.Data, asset.MimeType
	if kind == wasock.MediaImage && w.images != nil {
		if err := w.images.Validate(data); err != nil {
			log.WithError(err).Warn().Msg("Media is not a valid image, falling back to text-only")
			return nil
		}
		if jpg, err := w.images.ConvertToJPEG(data); err != nil {
			log.WithError(err).Warn().Msg("Image conversion failed, sending original bytes")
		} else {
			data, mimeType = jpg, "image/jpeg"
		}
	}

	return &wasock.Media{
		Kind:     kind,
		Data:     data,
		MimeType: mimeType,
	}
}

// resolveContact consulta o contato no cache e cai para o banco na ausência
func (w *Worker) resolveContact(ctx context.Context, userID uuid.UUID, normalized string) *contact.Contact {
	if w.contacts == nil {
		return nil
	}

	if w.cache != nil {
		if raw, err := w.cache.Get(ctx, cache.KeyContact(userID, normalized)); err == nil {
			var c contact.Contact
			if err := json.Unmarshal([]byte(raw), &c); err == nil {
				return &c
			}
		}
	}

	c, err := w.contacts.GetByPhone(ctx, userID, normalized)
	if err != nil {
		return nil
	}

	if w.cache != nil {
		if raw, err := json.Marshal(c); err == nil {
			_ = w.cache.Set(ctx, cache.KeyContact(userID, normalized), string(raw), cache.TTLContact)
		}
	}
	return c
}

// flagDeviceForReconnect coloca o dispositivo em connecting para o
// supervisor religá-lo antes do próximo retry do job
func (w *Worker) flagDeviceForReconnect(ctx context.Context, deviceID uuid.UUID) {
	dev, err := w.devices.GetByID(ctx, deviceID)
	if err != nil {
		return
	}
	if dev.Status == device.StatusConnected || dev.Status == device.StatusConnecting {
		return
	}
	dev.SetConnecting()
	if err := w.devices.Update(ctx, dev); err != nil {
		w.log.WithField("deviceId", deviceID).WithError(err).
			Warn().Msg("Failed to flag device for reconnect")
	}
}
