package fleet

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wafleet/internal/domain/device"
	"wafleet/internal/domain/eventlog"
	"wafleet/internal/domain/server"
	"wafleet/pkg/logger"
)

const (
	// healthInterval é o período do heartbeat do servidor
	healthInterval = 60 * time.Second

	// staleThreshold define a idade de health check a partir da qual um
	// servidor é considerado morto e seus dispositivos reatribuíveis
	staleThreshold = 5 * time.Minute
)

// Controller coordena a participação deste servidor na frota: registro,
// heartbeat, claims atômicos e colheita de atribuições órfãs.
type Controller struct {
	serverID string
	servers  server.Repository
	devices  device.Repository
	audit    eventlog.Repository
	log      logger.Logger

	url         string
	region      string
	priority    int
	maxCapacity int
}

// ControllerConfig parametriza a identidade do servidor na frota
type ControllerConfig struct {
	ServerID    string
	URL         string
	Region      string
	Priority    int
	MaxCapacity int
}

// NewController cria o controlador de frota deste servidor
func NewController(
	cfg ControllerConfig,
	servers server.Repository,
	devices device.Repository,
	audit eventlog.Repository,
	log logger.Logger,
) *Controller {
	return &Controller{
		serverID:    cfg.ServerID,
		servers:     servers,
		devices:     devices,
		audit:       audit,
		log:         log.WithComponent("fleet").WithField("serverId", cfg.ServerID),
		url:         cfg.URL,
		region:      cfg.Region,
		priority:    cfg.Priority,
		maxCapacity: cfg.MaxCapacity,
	}
}

// ServerID retorna a identidade deste servidor
func (c *Controller) ServerID() string {
	return c.serverID
}

// Register grava a linha deste servidor no boot, marcando-o ativo e
// saudável
func (c *Controller) Register(ctx context.Context) error {
	srv := &server.BackendServer{
		ID:          c.serverID,
		URL:         c.url,
		Region:      c.region,
		Priority:    c.priority,
		MaxCapacity: c.maxCapacity,
		IsActive:    true,
		IsHealthy:   true,
	}
	if err := c.servers.Upsert(ctx, srv); err != nil {
		return err
	}

	c.recordAction(ctx, "register", map[string]interface{}{
		"url":    c.url,
		"region": c.region,
	})
	c.log.Info().Msg("Server registered in fleet")
	return nil
}

// Deactivate marca o servidor como inativo no desligamento
func (c *Controller) Deactivate(ctx context.Context) error {
	if err := c.servers.SetActive(ctx, c.serverID, false); err != nil {
		return err
	}
	c.recordAction(ctx, "deactivate", nil)
	return nil
}

// RunHealthLoop emite o heartbeat periódico até o contexto encerrar.
// Cada batida reporta a carga corrente (dispositivos atribuídos).
func (c *Controller) RunHealthLoop(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.heartbeat(ctx)
		}
	}
}

func (c *Controller) heartbeat(ctx context.Context) {
	load, err := c.devices.CountAssigned(ctx, c.serverID)
	if err != nil {
		c.log.WithError(err).Warn().Msg("Failed to count assigned devices for heartbeat")
		load = 0
	}

	if err := c.servers.TouchHealth(ctx, c.serverID, true, load); err != nil {
		c.log.WithError(err).Error().Msg("Failed to record heartbeat")
	}
}

// ClaimDevice tenta atribuir o dispositivo a este servidor de forma
// atômica. Retorna false quando outro servidor venceu a corrida.
func (c *Controller) ClaimDevice(ctx context.Context, deviceID uuid.UUID) (bool, error) {
	won, err := c.devices.Claim(ctx, deviceID, c.serverID)
	if err != nil {
		return false, err
	}
	if won {
		c.recordAction(ctx, "claim", map[string]interface{}{"deviceId": deviceID.String()})
		c.log.WithField("deviceId", deviceID).Debug().Msg("Device claimed")
	}
	return won, nil
}

// ValidateOwnership relê a atribuição direto do banco e confirma que este
// servidor segue dono do dispositivo
func (c *Controller) ValidateOwnership(ctx context.Context, deviceID uuid.UUID) error {
	assigned, err := c.devices.GetAssignedServer(ctx, deviceID)
	if err != nil {
		return err
	}
	if assigned == nil {
		return device.ErrClaimLost
	}
	if *assigned != c.serverID {
		return device.ErrNotOwner
	}
	return nil
}

// BestServer seleciona o servidor preferido entre os elegíveis, seguindo
// a ordem prioridade, carga, tempo de resposta e id
func (c *Controller) BestServer(ctx context.Context) (*server.BackendServer, error) {
	eligible, err := c.servers.ListEligible(ctx)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, server.ErrServerNotFound
	}

	best := eligible[0]
	for _, candidate := range eligible[1:] {
		if candidate.Better(best) {
			best = candidate
		}
	}
	return best, nil
}

// CanClaim verifica se este servidor é o preferido da frota para assumir
// dispositivos órfãos. Com o preferido sendo outro servidor, ou sem
// nenhum elegível, o claim fica adiado para quem qualificar.
func (c *Controller) CanClaim(ctx context.Context) (bool, error) {
	best, err := c.BestServer(ctx)
	if err != nil {
		if err == server.ErrServerNotFound {
			return false, nil
		}
		return false, err
	}
	return best.ID == c.serverID, nil
}

// ReapStaleAssignments libera os dispositivos de servidores cujo último
// health check é mais antigo que o limite. Dispositivos liberados voltam
// ao pool e serão reclamados no próximo reconcile de algum servidor vivo.
func (c *Controller) ReapStaleAssignments(ctx context.Context) (int64, error) {
	stale, err := c.servers.ListStale(ctx, time.Now().Add(-staleThreshold))
	if err != nil {
		return 0, err
	}

	var released int64
	for _, srv := range stale {
		if srv.ID == c.serverID {
			continue
		}

		n, err := c.devices.ReleaseByServer(ctx, srv.ID)
		if err != nil {
			c.log.WithField("staleServerId", srv.ID).WithError(err).
				Error().Msg("Failed to release devices from stale server")
			continue
		}
		if n > 0 {
			released += n
			c.recordAction(ctx, "reap", map[string]interface{}{
				"staleServerId": srv.ID,
				"released":      n,
			})
			c.log.WithFields(map[string]interface{}{
				"staleServerId": srv.ID,
				"released":      n,
			}).Warn().Msg("Released devices from stale server")
		}
	}
	return released, nil
}

// recordAction grava a ação no histórico em modo best-effort
func (c *Controller) recordAction(ctx context.Context, action string, detail map[string]interface{}) {
	if c.audit == nil {
		return
	}
	err := c.audit.RecordServerAction(ctx, &eventlog.ServerAction{
		ServerID: c.serverID,
		Action:   action,
		Detail:   detail,
	})
	if err != nil {
		c.log.WithError(err).Debug().Msg("Failed to record server action")
	}
}
