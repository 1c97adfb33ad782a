package whatsapp

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wafleet/internal/domain/device"
	"wafleet/internal/infra/fleet"
	"wafleet/pkg/logger"
)

const (
	// reconcileInterval é o período do loop de reconciliação
	reconcileInterval = 10 * time.Second

	// stuckConnectingLimit é o tempo máximo em connecting/waiting_pairing
	// antes da coleta
	stuckConnectingLimit = 120 * time.Second
)

// Supervisor reconcilia periodicamente o estado desejado (dispositivos
// atribuídos a este servidor) com o estado real (conexões no registro):
// reivindica dispositivos órfãos, lança conexões ausentes, derruba
// conexões de dispositivos perdidos e coleta os travados em connecting.
type Supervisor struct {
	deps     Deps
	fleet    *fleet.Controller
	registry *Registry
	log      logger.Logger
}

// NewSupervisor cria o supervisor de dispositivos deste servidor
func NewSupervisor(deps Deps, registry *Registry) *Supervisor {
	return &Supervisor{
		deps:     deps,
		fleet:    deps.Fleet,
		registry: registry,
		log:      deps.Log.WithComponent("supervisor"),
	}
}

// Registry expõe o registro de conexões deste servidor
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Run executa uma reconciliação imediata e depois o loop periódico até o
// contexto encerrar
func (s *Supervisor) Run(ctx context.Context) {
	s.reconcile(ctx)

	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// reconcile executa uma rodada completa de reconciliação
func (s *Supervisor) reconcile(ctx context.Context) {
	if _, err := s.fleet.ReapStaleAssignments(ctx); err != nil {
		s.log.WithError(err).Warn().Msg("Failed to reap stale assignments")
	}

	devices, err := s.deps.Devices.ListByStatuses(ctx,
		device.StatusConnected,
		device.StatusConnecting,
		device.StatusWaitingPairing,
	)
	if err != nil {
		s.log.WithError(err).Error().Msg("Failed to list devices for reconcile")
		return
	}

	now := time.Now()
	wanted := make(map[uuid.UUID]struct{})

	// A admissão de órfãos é decidida uma vez por rodada: só o servidor
	// preferido da frota reivindica
	canClaim, err := s.fleet.CanClaim(ctx)
	if err != nil {
		s.log.WithError(err).Warn().Msg("Failed to evaluate claim admission, deferring orphans")
		canClaim = false
	}

	for _, dev := range devices {
		if s.collectIfStuck(ctx, dev, now) {
			continue
		}

		if !s.shouldRun(dev) {
			continue
		}

		if dev.IsUnassigned() {
			if !canClaim {
				continue
			}
			won, err := s.fleet.ClaimDevice(ctx, dev.ID)
			if err != nil {
				s.log.WithField("deviceId", dev.ID).WithError(err).
					Error().Msg("Failed to claim device")
				continue
			}
			if !won {
				continue
			}
		} else if !dev.IsAssignedTo(s.fleet.ServerID()) {
			continue
		}

		wanted[dev.ID] = struct{}{}
		if _, running := s.registry.Get(dev.ID); !running {
			s.launch(ctx, dev.ID)
		}
	}

	// Derruba conexões de dispositivos que não pertencem mais a este servidor
	s.registry.Each(func(deviceID uuid.UUID, conn *Connection) {
		if _, ok := wanted[deviceID]; ok {
			return
		}
		s.log.WithField("deviceId", deviceID).Info().Msg("Tearing down connection no longer owned")
		s.teardown(deviceID)
	})
}

// shouldRun decide se um dispositivo precisa de conexão ativa. Linhas
// connected cobrem a restauração pós-restart: o status persiste mesmo com
// o processo morto. Dispositivos disconnected só religam por pedido
// explícito do usuário.
func (s *Supervisor) shouldRun(dev *device.Device) bool {
	switch dev.Status {
	case device.StatusConnected, device.StatusConnecting, device.StatusWaitingPairing:
		return true
	}
	return false
}

// collectIfStuck coleta dispositivos travados em connecting há mais que o
// limite; retorna true quando o dispositivo foi coletado
func (s *Supervisor) collectIfStuck(ctx context.Context, dev *device.Device, now time.Time) bool {
	if !dev.IsStuckConnecting(now, stuckConnectingLimit) {
		return false
	}
	if !dev.IsAssignedTo(s.fleet.ServerID()) {
		return false
	}

	s.log.WithFields(map[string]interface{}{
		"deviceId": dev.ID,
		"status":   dev.Status,
	}).Warn().Msg("Collecting device stuck in connecting")

	s.teardown(dev.ID)

	// QR, código e sessão parcial são descartados; o dispositivo volta a
	// disconnected para o usuário pedir nova conexão do zero
	if err := s.deps.Creds.Wipe(ctx, dev.ID); err != nil {
		s.log.WithField("deviceId", dev.ID).WithError(err).
			Error().Msg("Failed to wipe credentials of stuck device")
	}
	dev.SetDisconnected()
	if err := s.deps.Devices.Update(ctx, dev); err != nil {
		s.log.WithField("deviceId", dev.ID).WithError(err).
			Error().Msg("Failed to persist stuck device status")
	}
	return true
}

// launch cria e inicia a conexão de um dispositivo
func (s *Supervisor) launch(ctx context.Context, deviceID uuid.UUID) {
	conn := NewConnection(deviceID, s.deps)
	s.registry.Put(deviceID, conn)
	conn.Start(ctx)
	s.log.WithField("deviceId", deviceID).Info().Msg("Connection launched")
}

// teardown remove e encerra a conexão de um dispositivo
func (s *Supervisor) teardown(deviceID uuid.UUID) {
	if conn, ok := s.registry.Remove(deviceID); ok {
		conn.Stop()
	}
}

// Connect coloca um dispositivo em connecting e lança a conexão na hora,
// sem esperar o próximo reconcile
func (s *Supervisor) Connect(ctx context.Context, deviceID uuid.UUID) error {
	dev, err := s.deps.Devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}

	if dev.IsConnected() {
		return device.NewDeviceError(deviceID, "connect", device.ErrDeviceAlreadyConnected)
	}

	if dev.IsUnassigned() {
		won, err := s.fleet.ClaimDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		if !won {
			return device.NewDeviceError(deviceID, "connect", device.ErrClaimLost)
		}
	} else if !dev.IsAssignedTo(s.fleet.ServerID()) {
		return device.NewDeviceError(deviceID, "connect", device.ErrNotOwner)
	}

	dev.SetConnecting()
	if err := s.deps.Devices.Update(ctx, dev); err != nil {
		return err
	}

	if _, running := s.registry.Get(deviceID); !running {
		s.launch(ctx, deviceID)
	}
	return nil
}

// Disconnect encerra a conexão de um dispositivo mantendo as credenciais
func (s *Supervisor) Disconnect(ctx context.Context, deviceID uuid.UUID) error {
	dev, err := s.deps.Devices.GetByID(ctx, deviceID)
	if err != nil {
		return err
	}

	s.teardown(deviceID)

	dev.Status = device.StatusDisconnected
	dev.QRCode = ""
	dev.PairingCode = ""
	return s.deps.Devices.Update(ctx, dev)
}

// Shutdown encerra todas as conexões deste servidor
func (s *Supervisor) Shutdown() {
	s.registry.Each(func(deviceID uuid.UUID, conn *Connection) {
		s.teardown(deviceID)
	})
	s.log.Info().Msg("All connections stopped")
}
