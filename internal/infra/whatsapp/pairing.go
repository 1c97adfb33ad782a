package whatsapp

import (
	"context"
	"errors"
	"time"

	"wafleet/internal/domain/device"
	"wafleet/internal/infra/cache"
	"wafleet/internal/wasock"
	"wafleet/pkg/phone"
)

const (
	// pairingOverallTimeout limita a operação inteira de emissão de código
	pairingOverallTimeout = 30 * time.Second

	// pairingReadyTimeout limita a espera pelo socket ficar pronto
	pairingReadyTimeout = 15 * time.Second

	// pairingReadyPoll é o intervalo de verificação de prontidão
	pairingReadyPoll = 500 * time.Millisecond

	// pairingMaxAttempts limita as tentativas de emissão
	pairingMaxAttempts = 3
)

// RequestPairingCode emite um código de pareamento para o telefone
// informado. A operação aguarda o socket ficar pronto, tenta a emissão
// com backoff e registra o código formatado no dispositivo e no cache.
func (c *Connection) RequestPairingCode(ctx context.Context, rawPhone string) (string, error) {
	normalized, err := phone.Normalize(rawPhone)
	if err != nil {
		return "", device.NewDeviceError(c.deviceID, "pairing", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pairingOverallTimeout)
	defer cancel()

	socket, err := c.waitSocketReady(ctx)
	if err != nil {
		return "", device.NewDeviceError(c.deviceID, "pairing", err)
	}

	if !socket.State().SupportsPairing {
		return "", device.NewDeviceError(c.deviceID, "pairing", device.ErrAlreadyRegistered)
	}

	var lastErr error
	for attempt := 1; attempt <= pairingMaxAttempts; attempt++ {
		code, err := socket.RequestPairingCode(ctx, normalized)
		if err == nil {
			return c.acceptPairingCode(ctx, code)
		}
		lastErr = err

		if isRateLimitError(err) {
			// Rate limit do upstream: o dispositivo permanece em
			// connecting com a mensagem de cooldown registrada
			c.markPairingCooldown(ctx)
			return "", device.NewDeviceError(c.deviceID, "pairing", device.ErrPairingRateLimited)
		}

		c.log.WithField("attempt", attempt).WithError(err).
			Warn().Msg("Pairing code request failed")

		if attempt < pairingMaxAttempts {
			select {
			case <-ctx.Done():
				return "", device.NewDeviceError(c.deviceID, "pairing", ctx.Err())
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
	}

	return "", device.NewDeviceError(c.deviceID, "pairing", lastErr)
}

// maybeRequestPairing emite o código de pareamento automaticamente quando
// o dispositivo usa o método pairing e ainda não tem sessão registrada.
// Um código já emitido e não expirado não é reemitido a cada religação.
func (c *Connection) maybeRequestPairing(ctx context.Context) {
	dev, err := c.deps.Devices.GetByID(ctx, c.deviceID)
	if err != nil {
		c.log.WithError(err).Error().Msg("Failed to load device for pairing check")
		return
	}

	if dev.ConnectionMethod != device.MethodPairing || dev.PairingPhone == "" {
		return
	}
	if dev.Status == device.StatusWaitingPairing && dev.PairingCode != "" {
		return
	}

	if _, err := c.RequestPairingCode(ctx, dev.PairingPhone); err != nil {
		if errors.Is(err, device.ErrAlreadyRegistered) {
			// Sessão registrada segue o fluxo normal de abertura
			return
		}
		c.log.WithError(err).Warn().Msg("Automatic pairing code request failed")
	}
}

// waitSocketReady aguarda o websocket abrir com o estado de autenticação
// carregado, dentro do limite de prontidão
func (c *Connection) waitSocketReady(ctx context.Context) (wasock.Socket, error) {
	deadline := time.Now().Add(pairingReadyTimeout)

	for {
		socket, err := c.liveSocket()
		if err == nil {
			if st := socket.State(); st.WebsocketOpen && st.HasAuthState {
				return socket, nil
			}
		}

		if time.Now().After(deadline) {
			return nil, device.ErrSocketNotFound
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pairingReadyPoll):
		}
	}
}

// acceptPairingCode formata, persiste e cacheia o código emitido
func (c *Connection) acceptPairingCode(ctx context.Context, code string) (string, error) {
	formatted, err := phone.FormatPairingCode(code)
	if err != nil {
		return "", device.NewDeviceError(c.deviceID, "pairing", err)
	}

	dev, err := c.deps.Devices.GetByID(ctx, c.deviceID)
	if err != nil {
		return "", device.NewDeviceError(c.deviceID, "pairing", err)
	}

	dev.SetPairingCode(formatted)
	if err := c.deps.Devices.Update(ctx, dev); err != nil {
		return "", device.NewDeviceError(c.deviceID, "pairing", err)
	}

	if c.deps.Cache != nil {
		if err := c.deps.Cache.Set(ctx, cache.KeyPairingCode(c.deviceID), formatted, cache.TTLPairingCode); err != nil {
			c.log.WithError(err).Warn().Msg("Failed to cache pairing code")
		}
	}

	c.recordEvent(ctx, "pairing_code_issued", nil)
	c.log.Info().Msg("Pairing code issued")
	return formatted, nil
}

// markPairingCooldown registra a mensagem de cooldown sem sair de connecting
func (c *Connection) markPairingCooldown(ctx context.Context) {
	dev, err := c.deps.Devices.GetByID(ctx, c.deviceID)
	if err != nil {
		return
	}
	dev.ErrorMessage = "pairing rate limited, retry in a few minutes"
	if err := c.deps.Devices.Update(ctx, dev); err != nil {
		c.log.WithError(err).Warn().Msg("Failed to persist pairing cooldown")
	}
}
