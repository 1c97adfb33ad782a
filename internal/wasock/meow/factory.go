// Package meow implementa o contrato wasock sobre a biblioteca whatsmeow.
// O material Signal de baixo nível fica no sqlstore da própria biblioteca;
// o núcleo enxerga apenas a superfície wasock.
package meow

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"

	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
)

// Factory constrói sockets whatsmeow compartilhando um único container
// de armazenamento Signal
type Factory struct {
	container *sqlstore.Container
	debugQR   bool
	log       logger.Logger
}

// NewFactory abre o container sqlstore no Postgres informado. As
// migrações do armazenamento Signal rodam na abertura.
func NewFactory(ctx context.Context, dsn string, log logger.Logger, debugQR bool) (*Factory, error) {
	waLog := logger.NewWhatsmeowLoggerAdapter(log.WithComponent("wasock-store"))
	container, err := sqlstore.New(ctx, "postgres", dsn, waLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open signal store: %w", err)
	}
	return &Factory{container: container, debugQR: debugQR, log: log}, nil
}

// NewSocket resolve o device store correspondente às credenciais e
// devolve um socket pronto para Connect. Credenciais registradas
// reatam o device vinculado; ausência ou falha de resolução gera um
// device novo e não registrado.
func (f *Factory) NewSocket(ctx context.Context, cfg wasock.Config) (wasock.Socket, error) {
	log := cfg.Logger
	if log == nil {
		log = f.log
	}
	log = log.WithComponent("wasock").WithField("deviceId", cfg.DeviceID)

	deviceStore := f.container.NewDevice()
	if creds := cfg.AuthState.Creds(); creds != nil && creds.Registered && creds.Me != nil {
		jid, err := types.ParseJID(creds.Me.JID)
		if err != nil {
			log.WithError(err).Warn().Msg("Stored JID unparseable, starting fresh device")
		} else {
			stored, err := f.container.GetDevice(ctx, jid)
			if err != nil || stored == nil {
				log.WithError(err).Warn().Msg("Bound device missing from signal store, starting fresh device")
			} else {
				deviceStore = stored
			}
		}
	}

	client := whatsmeow.NewClient(deviceStore, logger.NewWhatsmeowLoggerAdapter(log))

	// A supervisão de reconexão pertence ao gerenciador de conexões
	client.EnableAutoReconnect = false

	return newSocket(client, f.debugQR, log), nil
}
