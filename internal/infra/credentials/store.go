package credentials

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wafleet/internal/domain/device"
	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
)

// Store é a fachada de leitura e gravação de credenciais por dispositivo.
// A fonte de verdade é a coluna session_data da tabela devices.
type Store struct {
	devices device.Repository
	log     logger.Logger
}

// NewStore cria um novo armazém de credenciais
func NewStore(devices device.Repository, log logger.Logger) *Store {
	return &Store{devices: devices, log: log.WithComponent("credentials")}
}

// Load reconstitui o estado de autenticação persistido de um dispositivo.
// Blob ausente ou corrompido resulta em estado nulo: o chamador gera
// credenciais frescas e o dispositivo passa por novo pareamento.
func (s *Store) Load(ctx context.Context, deviceID uuid.UUID) (*State, error) {
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	if !dev.HasSession() {
		return nil, nil
	}

	creds, keys, err := Decode(dev.SessionData)
	if err != nil {
		s.log.WithField("deviceId", deviceID).WithError(err).
			Warn().Msg("Corrupted credential blob, treating as absent")
		return nil, nil
	}

	return &State{Creds: creds, Keys: keys}, nil
}

// Save serializa e grava o estado completo do dispositivo
func (s *Store) Save(ctx context.Context, deviceID uuid.UUID, st *State) error {
	data, err := Encode(st.Creds, st.Keys)
	if err != nil {
		return err
	}
	return s.devices.SaveSession(ctx, deviceID, data, time.Now())
}

// Wipe remove as credenciais persistidas do dispositivo
func (s *Store) Wipe(ctx context.Context, deviceID uuid.UUID) error {
	return s.devices.SaveSession(ctx, deviceID, nil, time.Now())
}

// State é um estado de autenticação completo em memória
type State struct {
	Creds *wasock.Creds
	Keys  map[wasock.KeyKind]map[string][]byte
}
