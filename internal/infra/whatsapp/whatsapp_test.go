package whatsapp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wafleet/internal/domain/device"
	"wafleet/internal/domain/server"
	"wafleet/internal/infra/credentials"
	"wafleet/internal/infra/fleet"
	"wafleet/internal/wasock"
	"wafleet/internal/wasock/wasocktest"
	"wafleet/pkg/logger"
)

// memDeviceRepo implementa device.Repository em memória
type memDeviceRepo struct {
	mu      sync.Mutex
	devices map[uuid.UUID]*device.Device
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{devices: make(map[uuid.UUID]*device.Device)}
}

func (m *memDeviceRepo) put(dev *device.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[dev.ID] = dev
}

func (m *memDeviceRepo) snapshot(id uuid.UUID) device.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.devices[id]
}

func (m *memDeviceRepo) Create(ctx context.Context, dev *device.Device) error {
	m.put(dev)
	return nil
}

func (m *memDeviceRepo) GetByID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, ok := m.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	clone := *dev
	return &clone, nil
}

func (m *memDeviceRepo) List(ctx context.Context) ([]*device.Device, error) { return nil, nil }

func (m *memDeviceRepo) ListByStatuses(ctx context.Context, statuses ...device.Status) ([]*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*device.Device
	for _, dev := range m.devices {
		for _, st := range statuses {
			if dev.Status == st {
				clone := *dev
				out = append(out, &clone)
				break
			}
		}
	}
	return out, nil
}

func (m *memDeviceRepo) Update(ctx context.Context, dev *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.devices[dev.ID]
	if !ok {
		return device.ErrDeviceNotFound
	}
	// Espelha o repositório real: Update nunca toca o blob de sessão
	clone := *dev
	clone.SessionData = stored.SessionData
	clone.SessionSavedAt = stored.SessionSavedAt
	m.devices[dev.ID] = &clone
	return nil
}

func (m *memDeviceRepo) Claim(ctx context.Context, deviceID uuid.UUID, serverID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, ok := m.devices[deviceID]
	if !ok || dev.AssignedServerID != nil {
		return false, nil
	}
	dev.AssignedServerID = &serverID
	return true, nil
}

func (m *memDeviceRepo) GetAssignedServer(ctx context.Context, deviceID uuid.UUID) (*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, ok := m.devices[deviceID]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return dev.AssignedServerID, nil
}

func (m *memDeviceRepo) ReleaseByServer(ctx context.Context, serverID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, dev := range m.devices {
		if dev.AssignedServerID != nil && *dev.AssignedServerID == serverID {
			dev.AssignedServerID = nil
			n++
		}
	}
	return n, nil
}

func (m *memDeviceRepo) CountAssigned(ctx context.Context, serverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, dev := range m.devices {
		if dev.AssignedServerID != nil && *dev.AssignedServerID == serverID {
			n++
		}
	}
	return n, nil
}

func (m *memDeviceRepo) SaveSession(ctx context.Context, deviceID uuid.UUID, blob []byte, savedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dev, ok := m.devices[deviceID]
	if !ok {
		return device.ErrDeviceNotFound
	}
	dev.SessionData = blob
	dev.SessionSavedAt = &savedAt
	return nil
}

// memServerRepo implementa server.Repository em memória
type memServerRepo struct {
	mu      sync.Mutex
	servers map[string]*server.BackendServer
}

func newMemServerRepo() *memServerRepo {
	return &memServerRepo{servers: make(map[string]*server.BackendServer)}
}

func (m *memServerRepo) Upsert(ctx context.Context, srv *server.BackendServer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[srv.ID] = srv
	return nil
}

func (m *memServerRepo) GetByID(ctx context.Context, id string) (*server.BackendServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	srv, ok := m.servers[id]
	if !ok {
		return nil, server.ErrServerNotFound
	}
	return srv, nil
}

func (m *memServerRepo) ListEligible(ctx context.Context) ([]*server.BackendServer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*server.BackendServer
	for _, srv := range m.servers {
		if srv.IsEligible() {
			clone := *srv
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memServerRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*server.BackendServer, error) {
	return nil, nil
}

func (m *memServerRepo) TouchHealth(ctx context.Context, id string, healthy bool, load int) error {
	return nil
}

func (m *memServerRepo) SetActive(ctx context.Context, id string, active bool) error { return nil }

// harness monta as dependências de teste de uma conexão
type harness struct {
	deviceID uuid.UUID
	repo     *memDeviceRepo
	servers  *memServerRepo
	factory  *wasocktest.FakeFactory
	store    *credentials.Store
	deps     Deps
}

func newHarness(t *testing.T, serverID string) *harness {
	t.Helper()

	repo := newMemDeviceRepo()
	deviceID := uuid.New()
	assigned := serverID
	repo.put(&device.Device{
		ID:               deviceID,
		UserID:           uuid.New(),
		Name:             "test-device",
		Status:           device.StatusConnecting,
		AssignedServerID: &assigned,
		UpdatedAt:        time.Now(),
	})

	log := logger.SetupForTesting()
	store := credentials.NewStore(repo, log)
	factory := wasocktest.NewFakeFactory()

	servers := newMemServerRepo()
	require.NoError(t, servers.Upsert(context.Background(), &server.BackendServer{
		ID:          serverID,
		URL:         "http://" + serverID + ":8080",
		Priority:    1,
		MaxCapacity: 50,
		IsActive:    true,
		IsHealthy:   true,
	}))

	ctrl := fleet.NewController(fleet.ControllerConfig{
		ServerID:    serverID,
		URL:         "http://" + serverID + ":8080",
		MaxCapacity: 50,
		Priority:    1,
	}, servers, repo, nil, log)

	return &harness{
		deviceID: deviceID,
		repo:     repo,
		servers:  servers,
		factory:  factory,
		store:    store,
		deps: Deps{
			Factory:           factory,
			Devices:           repo,
			Creds:             store,
			Fleet:             ctrl,
			Log:               log,
			HandshakeTimeout:  5 * time.Second,
			KeepAliveInterval: time.Second,
		},
	}
}

func waitSocket(t *testing.T, f *wasocktest.FakeFactory, n int) *wasocktest.FakeSocket {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.Sockets()) >= n
	}, 5*time.Second, 10*time.Millisecond)
	return f.Sockets()[n-1]
}

func TestConnectionOpenMarksDeviceConnected(t *testing.T) {
	h := newHarness(t, "backend-a")
	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	sock := waitSocket(t, h.factory, 1)
	sock.SetState(wasock.SocketState{
		WebsocketOpen: true,
		HasAuthState:  true,
		BoundJID:      "628123456789:12@s.whatsapp.net",
		BoundName:     "Test User",
	})
	sock.EmitOpen()

	require.Eventually(t, func() bool {
		return h.repo.snapshot(h.deviceID).Status == device.StatusConnected
	}, 5*time.Second, 10*time.Millisecond)

	dev := h.repo.snapshot(h.deviceID)
	assert.Equal(t, "628123456789", dev.Phone)
	assert.Empty(t, dev.QRCode)
	assert.Empty(t, dev.PairingCode)
	require.NotNil(t, dev.AssignedServerID)
	assert.Equal(t, "backend-a", *dev.AssignedServerID)
	assert.True(t, conn.IsOpen())

	// O vínculo foi espelhado nas credenciais persistidas
	st, err := h.store.Load(context.Background(), h.deviceID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Creds.Registered)
}

func TestConnectionQRRefreshOverwrites(t *testing.T) {
	h := newHarness(t, "backend-a")
	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	sock := waitSocket(t, h.factory, 1)
	sock.EmitQR("qr-payload-1")
	sock.EmitQR("qr-payload-2")

	require.Eventually(t, func() bool {
		return h.repo.snapshot(h.deviceID).QRCode == "qr-payload-2"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestConnectionRestartRequiredRelaunches(t *testing.T) {
	h := newHarness(t, "backend-a")
	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	sock := waitSocket(t, h.factory, 1)
	sock.EmitClose(wasock.CodeRestartRequired, false)

	// Um segundo socket deve nascer após o delay de restart
	waitSocket(t, h.factory, 2)
}

func TestConnectionAuthFailureWipesCredentials(t *testing.T) {
	h := newHarness(t, "backend-a")

	// Semeia credenciais registradas
	creds := wasock.NewCreds()
	creds.Registered = true
	creds.Me = &wasock.BoundIdentity{JID: "628123456789@s.whatsapp.net"}
	require.NoError(t, h.store.Save(context.Background(), h.deviceID, &credentials.State{Creds: creds}))

	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	sock := waitSocket(t, h.factory, 1)
	sock.EmitClose(wasock.CodeAuthFailure, false)

	waitSocket(t, h.factory, 2)

	// O relançamento deve partir de credenciais frescas
	st, err := h.store.Load(context.Background(), h.deviceID)
	require.NoError(t, err)
	assert.Nil(t, st)

	dev := h.repo.snapshot(h.deviceID)
	assert.Equal(t, device.StatusConnecting, dev.Status)
}

func TestConnectionLoggedOutIsTerminal(t *testing.T) {
	h := newHarness(t, "backend-a")
	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())

	sock := waitSocket(t, h.factory, 1)
	sock.EmitClose(wasock.CodeAuthFailure, true)

	require.Eventually(t, func() bool {
		return h.repo.snapshot(h.deviceID).Status == device.StatusDisconnected
	}, 5*time.Second, 10*time.Millisecond)

	// Nenhum relançamento após logout permanente
	time.Sleep(3 * transientDelay)
	assert.Len(t, h.factory.Sockets(), 1)

	dev := h.repo.snapshot(h.deviceID)
	assert.Empty(t, dev.SessionData)
	assert.Empty(t, dev.Phone)

	conn.Stop()
}

func TestConnectionStreamConflictAbandonsWhenOwnershipLost(t *testing.T) {
	h := newHarness(t, "backend-a")
	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())

	sock := waitSocket(t, h.factory, 1)

	// Outro servidor assume o dispositivo antes do conflito
	_, err := h.repo.ReleaseByServer(context.Background(), "backend-a")
	require.NoError(t, err)
	other := "backend-b"
	won, err := h.repo.Claim(context.Background(), h.deviceID, other)
	require.NoError(t, err)
	require.True(t, won)

	sock.EmitClose(wasock.CodeStreamConflict, false)

	time.Sleep(3 * transientDelay)
	assert.Len(t, h.factory.Sockets(), 1)

	conn.Stop()
}

func TestConnectionTransientCloseRelaunches(t *testing.T) {
	h := newHarness(t, "backend-a")
	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	sock := waitSocket(t, h.factory, 1)
	sock.EmitClose(wasock.CodeConnectionLost, false)

	waitSocket(t, h.factory, 2)
}

func TestRequestPairingCodeSuccess(t *testing.T) {
	h := newHarness(t, "backend-a")
	h.factory.Prepare = func(s *wasocktest.FakeSocket, cfg wasock.Config) {
		s.PairingCode = "ABCD1234"
		s.SetState(wasock.SocketState{WebsocketOpen: true, HasAuthState: true, SupportsPairing: true})
	}

	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	waitSocket(t, h.factory, 1)

	code, err := conn.RequestPairingCode(context.Background(), "08123456789")
	require.NoError(t, err)
	assert.Equal(t, "ABCD-1234", code)

	dev := h.repo.snapshot(h.deviceID)
	assert.Equal(t, device.StatusWaitingPairing, dev.Status)
	assert.Equal(t, "ABCD-1234", dev.PairingCode)
	assert.Empty(t, dev.QRCode)
}

func TestRequestPairingCodeRejectsRegisteredCreds(t *testing.T) {
	h := newHarness(t, "backend-a")
	h.factory.Prepare = func(s *wasocktest.FakeSocket, cfg wasock.Config) {
		s.SetState(wasock.SocketState{WebsocketOpen: true, HasAuthState: true, SupportsPairing: false})
	}

	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	waitSocket(t, h.factory, 1)

	_, err := conn.RequestPairingCode(context.Background(), "08123456789")
	assert.ErrorIs(t, err, device.ErrAlreadyRegistered)
}

func TestRequestPairingCodeRateLimited(t *testing.T) {
	h := newHarness(t, "backend-a")
	h.factory.Prepare = func(s *wasocktest.FakeSocket, cfg wasock.Config) {
		s.PairingErr = errors.New("429: too many requests")
		s.SetState(wasock.SocketState{WebsocketOpen: true, HasAuthState: true, SupportsPairing: true})
	}

	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	waitSocket(t, h.factory, 1)

	_, err := conn.RequestPairingCode(context.Background(), "08123456789")
	assert.ErrorIs(t, err, device.ErrPairingRateLimited)

	// O dispositivo permanece em connecting com a mensagem de cooldown
	dev := h.repo.snapshot(h.deviceID)
	assert.Equal(t, device.StatusConnecting, dev.Status)
	assert.NotEmpty(t, dev.ErrorMessage)
}

func TestRequestPairingCodeRejectsInvalidPhone(t *testing.T) {
	h := newHarness(t, "backend-a")
	conn := NewConnection(h.deviceID, h.deps)

	_, err := conn.RequestPairingCode(context.Background(), "abc")
	assert.Error(t, err)
}

func TestRequestPairingCodeWaitsForAuthState(t *testing.T) {
	h := newHarness(t, "backend-a")
	h.factory.Prepare = func(s *wasocktest.FakeSocket, cfg wasock.Config) {
		// Websocket aberto mas com o estado de autenticação ainda não
		// carregado: a emissão não pode acontecer
		s.SetState(wasock.SocketState{WebsocketOpen: true, HasAuthState: false, SupportsPairing: true})
	}

	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())
	defer conn.Stop()

	sock := waitSocket(t, h.factory, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := conn.RequestPairingCode(ctx, "08123456789")
	require.Error(t, err)
	assert.Zero(t, sock.PairingCalls())
}

func TestSupervisorLaunchIssuesPairingCode(t *testing.T) {
	h := newHarness(t, "backend-a")

	dev := h.repo.snapshot(h.deviceID)
	dev.ConnectionMethod = device.MethodPairing
	dev.PairingPhone = "08123456789"
	h.repo.put(&dev)

	h.factory.Prepare = func(s *wasocktest.FakeSocket, cfg wasock.Config) {
		s.PairingCode = "WXYZ9876"
		s.SetState(wasock.SocketState{WebsocketOpen: true, HasAuthState: true, SupportsPairing: true})
	}

	sup := NewSupervisor(h.deps, NewRegistry())
	sup.reconcile(context.Background())
	defer sup.Shutdown()

	sock := waitSocket(t, h.factory, 1)

	// O código é emitido sem nenhum pedido explícito do usuário
	require.Eventually(t, func() bool {
		return h.repo.snapshot(h.deviceID).Status == device.StatusWaitingPairing
	}, 5*time.Second, 10*time.Millisecond)

	got := h.repo.snapshot(h.deviceID)
	assert.Equal(t, "WXYZ-9876", got.PairingCode)
	assert.Empty(t, got.QRCode)
	assert.Equal(t, 1, sock.PairingCalls())
}

func TestConnectionConstructionFailureIsTerminal(t *testing.T) {
	h := newHarness(t, "backend-a")
	h.factory.NewSocketErr = errors.New("session store unavailable")

	conn := NewConnection(h.deviceID, h.deps)
	conn.Start(context.Background())

	require.Eventually(t, func() bool {
		return h.repo.snapshot(h.deviceID).Status == device.StatusError
	}, 5*time.Second, 10*time.Millisecond)

	got := h.repo.snapshot(h.deviceID)
	assert.Contains(t, got.ErrorMessage, "socket construction failed")

	// Nenhuma nova tentativa de construção após o erro
	time.Sleep(3 * transientDelay)
	assert.Empty(t, h.factory.Sockets())

	conn.Stop()
}

func TestSendMessageRequiresOpenSocket(t *testing.T) {
	h := newHarness(t, "backend-a")
	conn := NewConnection(h.deviceID, h.deps)

	err := conn.SendMessage(context.Background(), "628123456789@s.whatsapp.net", &wasock.Message{Text: "oi"})
	assert.ErrorIs(t, err, device.ErrDeviceNotConnected)
}

func TestSupervisorClaimsAndLaunches(t *testing.T) {
	h := newHarness(t, "backend-a")

	// Dispositivo órfão em connecting
	orphan := uuid.New()
	h.repo.put(&device.Device{
		ID:     orphan,
		UserID: uuid.New(),
		Name:   "orphan",
		Status: device.StatusConnecting,
	})

	sup := NewSupervisor(h.deps, NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sup.reconcile(ctx)
	defer sup.Shutdown()

	_, running := sup.Registry().Get(orphan)
	assert.True(t, running)

	assigned, err := h.repo.GetAssignedServer(ctx, orphan)
	require.NoError(t, err)
	require.NotNil(t, assigned)
	assert.Equal(t, "backend-a", *assigned)
}

func TestSupervisorSkipsDevicesOwnedElsewhere(t *testing.T) {
	h := newHarness(t, "backend-a")

	other := "backend-b"
	foreign := uuid.New()
	h.repo.put(&device.Device{
		ID:               foreign,
		UserID:           uuid.New(),
		Name:             "foreign",
		Status:           device.StatusConnecting,
		AssignedServerID: &other,
	})

	sup := NewSupervisor(h.deps, NewRegistry())
	ctx := context.Background()
	sup.reconcile(ctx)
	defer sup.Shutdown()

	_, running := sup.Registry().Get(foreign)
	assert.False(t, running)
}

func TestSupervisorCollectsStuckConnecting(t *testing.T) {
	h := newHarness(t, "backend-a")

	// Sessão parcial acumulada durante a tentativa travada
	require.NoError(t, h.store.Save(context.Background(), h.deviceID,
		&credentials.State{Creds: wasock.NewCreds()}))

	// Força o dispositivo a parecer travado há mais que o limite
	dev := h.repo.snapshot(h.deviceID)
	dev.QRCode = "expired-qr"
	dev.UpdatedAt = time.Now().Add(-2 * stuckConnectingLimit)
	h.repo.put(&dev)

	sup := NewSupervisor(h.deps, NewRegistry())
	sup.reconcile(context.Background())
	defer sup.Shutdown()

	// A coleta descarta QR, código e sessão e devolve a disconnected; em
	// erro o dispositivo ficaria fora do reconcile para sempre
	got := h.repo.snapshot(h.deviceID)
	assert.Equal(t, device.StatusDisconnected, got.Status)
	assert.Empty(t, got.QRCode)
	assert.Empty(t, got.PairingCode)
	assert.Empty(t, got.SessionData)

	_, running := sup.Registry().Get(h.deviceID)
	assert.False(t, running)
}

func TestSupervisorDefersClaimWhenNotPreferred(t *testing.T) {
	h := newHarness(t, "backend-a")

	// Outro servidor com prioridade maior é o preferido da frota
	require.NoError(t, h.servers.Upsert(context.Background(), &server.BackendServer{
		ID:          "backend-b",
		URL:         "http://backend-b:8080",
		Priority:    9,
		MaxCapacity: 50,
		IsActive:    true,
		IsHealthy:   true,
	}))

	orphan := uuid.New()
	h.repo.put(&device.Device{
		ID:     orphan,
		UserID: uuid.New(),
		Name:   "orphan",
		Status: device.StatusConnecting,
	})

	sup := NewSupervisor(h.deps, NewRegistry())
	sup.reconcile(context.Background())
	defer sup.Shutdown()

	_, running := sup.Registry().Get(orphan)
	assert.False(t, running)

	assigned, err := h.repo.GetAssignedServer(context.Background(), orphan)
	require.NoError(t, err)
	assert.Nil(t, assigned)
}

func TestSupervisorDefersClaimAtFullCapacity(t *testing.T) {
	h := newHarness(t, "backend-a")

	// No limite de capacidade o servidor sai do pool de admissão
	require.NoError(t, h.servers.Upsert(context.Background(), &server.BackendServer{
		ID:          "backend-a",
		URL:         "http://backend-a:8080",
		Priority:    1,
		MaxCapacity: 50,
		CurrentLoad: 50,
		IsActive:    true,
		IsHealthy:   true,
	}))

	orphan := uuid.New()
	h.repo.put(&device.Device{
		ID:     orphan,
		UserID: uuid.New(),
		Name:   "orphan",
		Status: device.StatusConnecting,
	})

	sup := NewSupervisor(h.deps, NewRegistry())
	sup.reconcile(context.Background())
	defer sup.Shutdown()

	assigned, err := h.repo.GetAssignedServer(context.Background(), orphan)
	require.NoError(t, err)
	assert.Nil(t, assigned)
}

func TestSupervisorTearsDownLostDevices(t *testing.T) {
	h := newHarness(t, "backend-a")

	sup := NewSupervisor(h.deps, NewRegistry())
	ctx := context.Background()
	sup.reconcile(ctx)

	_, running := sup.Registry().Get(h.deviceID)
	require.True(t, running)

	// Outro servidor rouba o dispositivo
	_, err := h.repo.ReleaseByServer(ctx, "backend-a")
	require.NoError(t, err)
	other := "backend-b"
	_, err = h.repo.Claim(ctx, h.deviceID, other)
	require.NoError(t, err)

	sup.reconcile(ctx)

	_, running = sup.Registry().Get(h.deviceID)
	assert.False(t, running)
	sup.Shutdown()
}

func TestSupervisorConnectRequiresOwnershipOrClaim(t *testing.T) {
	h := newHarness(t, "backend-a")
	sup := NewSupervisor(h.deps, NewRegistry())
	ctx := context.Background()
	defer sup.Shutdown()

	// Dispositivo de outro servidor
	other := "backend-b"
	foreign := uuid.New()
	h.repo.put(&device.Device{
		ID:               foreign,
		UserID:           uuid.New(),
		Status:           device.StatusDisconnected,
		AssignedServerID: &other,
	})
	err := sup.Connect(ctx, foreign)
	assert.ErrorIs(t, err, device.ErrNotOwner)

	// Dispositivo órfão é reivindicado e lançado
	orphan := uuid.New()
	h.repo.put(&device.Device{ID: orphan, UserID: uuid.New(), Status: device.StatusDisconnected})
	require.NoError(t, sup.Connect(ctx, orphan))

	_, running := sup.Registry().Get(orphan)
	assert.True(t, running)

	got, _ := h.repo.GetByID(ctx, orphan)
	assert.Equal(t, device.StatusConnecting, got.Status)
}
