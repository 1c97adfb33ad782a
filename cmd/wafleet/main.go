package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	_ "github.com/lib/pq" // PostgreSQL driver (whatsmeow sqlstore)

	"wafleet/internal/app"
	"wafleet/internal/app/config"
	"wafleet/internal/app/server"
	"wafleet/internal/http/router"
	infraBroadcast "wafleet/internal/infra/broadcast"
	"wafleet/internal/infra/cache"
	"wafleet/internal/infra/database"
	"wafleet/internal/wasock/meow"
	"wafleet/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	log := logger.Setup(cfg).WithComponent("main")

	log.WithFields(map[string]interface{}{
		"env":  cfg.App.Env,
		"port": cfg.App.Port,
	}).Info().Msg("Starting wafleet")

	// Contexto raiz dos loops de fundo (supervisor, heartbeat, scheduler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dsn := cfg.GetDatabaseDSN()
	debug := cfg.App.Env == "development"

	db, err := database.NewDatabase(dsn, debug, log)
	if err != nil {
		log.WithError(err).Fatal().Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal().Msg("Failed to run migrations")
	}

	cch, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.WithError(err).Fatal().Msg("Failed to connect to Redis")
	}
	defer cch.Close()

	factory, err := meow.NewFactory(ctx, dsn, log, debug)
	if err != nil {
		log.WithError(err).Fatal().Msg("Failed to initialize WhatsApp socket factory")
	}

	container, err := app.NewContainer(cfg, db, cch, factory, log)
	if err != nil {
		log.WithError(err).Fatal().Msg("Failed to initialize container")
	}

	// Registro na frota antes de aceitar qualquer trabalho
	if err := container.Fleet.Register(ctx); err != nil {
		log.WithError(err).Fatal().Msg("Failed to register server in fleet")
	}

	go container.Fleet.RunHealthLoop(ctx)
	go container.Supervisor.Run(ctx)
	go container.Scheduler.Run(ctx)

	// Servidor asynq consome as tarefas de despacho quando a fila está ativa
	var queueServer *asynq.Server
	if cfg.QueueEnabled() {
		queueServer = infraBroadcast.NewQueueServer(cfg.Queue.Addr, cfg.Queue.Password, cfg.Queue.DB, 5)
		mux := infraBroadcast.NewServeMux(container.Worker)
		if err := queueServer.Start(mux); err != nil {
			log.WithError(err).Fatal().Msg("Failed to start queue server")
		}
		log.Info().Msg("Broadcast queue server started")
	} else {
		log.Warn().Msg("Queue disabled, broadcasts dispatch by polling only")
	}

	handler := router.New(cfg, log, container.HealthHandler, container.MessageHandler, container.GroupHandler)
	srv := server.New(cfg, handler, log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Fatal().Msg("Failed to start server")
		}
	}()

	log.Info().Msg("wafleet started successfully")

	<-stop
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Ordem: parar de aceitar requisições, sair da frota, drenar a fila,
	// derrubar os sockets (que gravam as credenciais ao fechar)
	if err := srv.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error().Msg("Error during server shutdown")
	}

	if err := container.Fleet.Deactivate(shutdownCtx); err != nil {
		log.WithError(err).Error().Msg("Failed to deactivate server in fleet")
	}

	if queueServer != nil {
		queueServer.Shutdown()
	}
	if container.Queue != nil {
		if err := container.Queue.Close(); err != nil {
			log.WithError(err).Warn().Msg("Failed to close queue client")
		}
	}

	cancel()
	container.Supervisor.Shutdown()

	log.Info().Msg("Application stopped")
}
