package app

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"wafleet/internal/app/config"
	broadcastDomain "wafleet/internal/domain/broadcast"
	"wafleet/internal/domain/contact"
	"wafleet/internal/domain/device"
	"wafleet/internal/domain/eventlog"
	"wafleet/internal/domain/server"
	"wafleet/internal/http/handlers"
	infraBroadcast "wafleet/internal/infra/broadcast"
	"wafleet/internal/infra/cache"
	"wafleet/internal/infra/credentials"
	"wafleet/internal/infra/database"
	"wafleet/internal/infra/fleet"
	"wafleet/internal/infra/media"
	"wafleet/internal/infra/whatsapp"
	"wafleet/internal/usecases/group"
	"wafleet/internal/usecases/message"
	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
)

// Container gerencia todas as dependências da aplicação
type Container struct {
	// Infra
	DB    *bun.DB
	Cache *cache.Cache

	// Repositories
	DeviceRepo    device.Repository
	ServerRepo    server.Repository
	BroadcastRepo broadcastDomain.Repository
	ContactRepo   contact.Repository
	EventLogRepo  eventlog.Repository

	// Fleet e sessões
	Fleet      *fleet.Controller
	Creds      *credentials.Store
	Registry   *whatsapp.Registry
	Supervisor *whatsapp.Supervisor

	// Broadcast
	Queue     *infraBroadcast.Queue
	Worker    *infraBroadcast.Worker
	Scheduler *infraBroadcast.Scheduler

	// Use cases
	SendMessageUC *message.SendMessageUseCase
	ListGroupsUC  *group.ListGroupsUseCase

	// Handlers
	HealthHandler  *handlers.HealthHandler
	MessageHandler *handlers.MessageHandler
	GroupHandler   *handlers.GroupHandler

	Logger logger.Logger
}

// senderRegistry adapta o registro de conexões para a visão do worker
type senderRegistry struct {
	registry *whatsapp.Registry
}

func (s *senderRegistry) Lookup(deviceID uuid.UUID) (infraBroadcast.Sender, bool) {
	conn, ok := s.registry.Get(deviceID)
	if !ok {
		return nil, false
	}
	return conn, true
}

// NewContainer cria um novo container de dependências
func NewContainer(
	cfg *config.Config,
	db *bun.DB,
	cch *cache.Cache,
	factory wasock.Factory,
	log logger.Logger,
) (*Container, error) {
	c := &Container{
		DB:     db,
		Cache:  cch,
		Logger: log.WithComponent("di-container"),
	}

	// Repositórios
	c.DeviceRepo = database.NewDeviceRepository(db)
	c.ServerRepo = database.NewServerRepository(db)
	c.BroadcastRepo = database.NewBroadcastRepository(db)
	c.ContactRepo = database.NewContactRepository(db)
	c.EventLogRepo = database.NewEventLogRepository(db)

	// Identidade e controlador de frota
	serverID, err := fleet.ResolveServerID(cfg.Server.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server id: %w", err)
	}
	c.Fleet = fleet.NewController(fleet.ControllerConfig{
		ServerID:    serverID,
		URL:         cfg.Server.URL,
		Region:      cfg.Server.Region,
		Priority:    cfg.Server.Priority,
		MaxCapacity: cfg.Server.MaxCapacity,
	}, c.ServerRepo, c.DeviceRepo, c.EventLogRepo, log)

	// Sessões WhatsApp
	c.Creds = credentials.NewStore(c.DeviceRepo, log)
	c.Registry = whatsapp.NewRegistry()
	c.Supervisor = whatsapp.NewSupervisor(whatsapp.Deps{
		Factory:           factory,
		Devices:           c.DeviceRepo,
		Creds:             c.Creds,
		Cache:             cch,
		Fleet:             c.Fleet,
		Audit:             c.EventLogRepo,
		Log:               log,
		HandshakeTimeout:  cfg.WhatsApp.HandshakeTimeout,
		KeepAliveInterval: cfg.WhatsApp.KeepAliveInterval,
	}, c.Registry)

	// Broadcast
	fetcher := media.NewFetcher(log)
	images := media.NewImageProcessor(log)
	c.Worker = infraBroadcast.NewWorker(
		c.BroadcastRepo,
		c.ContactRepo,
		c.DeviceRepo,
		&senderRegistry{registry: c.Registry},
		fetcher,
		images,
		cch,
		log,
	)
	if cfg.QueueEnabled() {
		c.Queue = infraBroadcast.NewQueue(cfg.Queue.Addr, cfg.Queue.Password, cfg.Queue.DB)
	}
	c.Scheduler = infraBroadcast.NewScheduler(c.BroadcastRepo, c.Queue, c.Worker, log)

	// Use cases
	c.SendMessageUC = message.NewSendMessageUseCase(c.DeviceRepo, c.Fleet, c.Registry, fetcher, images, log)
	c.ListGroupsUC = group.NewListGroupsUseCase(c.DeviceRepo, c.Fleet, c.Registry, log)

	// Handlers
	c.HealthHandler = handlers.NewHealthHandler(c.Registry)
	c.MessageHandler = handlers.NewMessageHandler(c.SendMessageUC, log)
	c.GroupHandler = handlers.NewGroupHandler(c.ListGroupsUC, log)

	c.Logger.WithField("serverId", serverID).Info().Msg("Container initialized successfully")
	return c, nil
}
