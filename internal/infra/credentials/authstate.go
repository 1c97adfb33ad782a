package credentials

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
)

// AuthState adapta o armazém de credenciais ao contrato wasock.AuthState.
// Toda mutação reescreve o blob inteiro; falhas de gravação são
// registradas e nunca propagadas ao caminho quente do socket.
type AuthState struct {
	deviceID uuid.UUID
	store    *Store
	log      logger.Logger

	mu    sync.Mutex
	creds *wasock.Creds
	keys  map[wasock.KeyKind]map[string][]byte
}

// NewAuthState monta o auth state de um dispositivo a partir do estado
// carregado; estado nulo gera credenciais frescas não registradas
func NewAuthState(deviceID uuid.UUID, st *State, store *Store, log logger.Logger) *AuthState {
	a := &AuthState{
		deviceID: deviceID,
		store:    store,
		log:      log.WithComponent("authstate").WithField("deviceId", deviceID),
	}
	if st != nil && st.Creds != nil {
		a.creds = st.Creds
		a.keys = st.Keys
	} else {
		a.creds = wasock.NewCreds()
		a.keys = make(map[wasock.KeyKind]map[string][]byte)
	}
	if a.keys == nil {
		a.keys = make(map[wasock.KeyKind]map[string][]byte)
	}
	return a
}

// Creds retorna as credenciais correntes
func (a *AuthState) Creds() *wasock.Creds {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.creds
}

// Keys retorna o armazenamento de chaves do protocolo
func (a *AuthState) Keys() wasock.KeyStore {
	return (*keyStore)(a)
}

// MarkRegistered registra o vínculo após pareamento bem-sucedido e
// persiste imediatamente
func (a *AuthState) MarkRegistered(ctx context.Context, jid, name string) {
	a.mu.Lock()
	a.creds.Registered = true
	a.creds.Me = &wasock.BoundIdentity{JID: jid, Name: name}
	a.mu.Unlock()
	a.Save(ctx)
}

// Save persiste o estado completo. Erros são registrados e engolidos:
// o socket não pode cair por falha transitória de persistência.
func (a *AuthState) Save(ctx context.Context) {
	a.mu.Lock()
	st := &State{Creds: a.creds, Keys: a.keys}
	a.mu.Unlock()

	if err := a.store.Save(ctx, a.deviceID, st); err != nil {
		a.log.WithError(err).Error().Msg("Failed to persist credential blob")
	}
}

// keyStore expõe o mapa de chaves como wasock.KeyStore. Mutações
// persistem o blob inteiro de forma síncrona.
type keyStore AuthState

func (k *keyStore) Get(ctx context.Context, kind wasock.KeyKind, ids []string) (map[string][]byte, error) {
	a := (*AuthState)(k)
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string][]byte, len(ids))
	bucket := a.keys[kind]
	for _, id := range ids {
		if val, ok := bucket[id]; ok {
			out[id] = val
		}
	}
	return out, nil
}

func (k *keyStore) Set(ctx context.Context, records map[wasock.KeyKind]map[string][]byte) error {
	a := (*AuthState)(k)
	a.mu.Lock()
	for kind, entries := range records {
		bucket := a.keys[kind]
		if bucket == nil {
			bucket = make(map[string][]byte)
			a.keys[kind] = bucket
		}
		for id, val := range entries {
			if val == nil {
				delete(bucket, id)
			} else {
				bucket[id] = val
			}
		}
	}
	a.mu.Unlock()

	a.Save(ctx)
	return nil
}
