package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wafleet/internal/domain/device"
	"wafleet/internal/domain/server"
	"wafleet/pkg/logger"
)

func TestValidateServerID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"hostname simples", "backend-1", false},
		{"com pontos", "srv.ap-southeast-1.internal", false},
		{"com underscore", "srv_01", false},
		{"muito curto", "ab", true},
		{"caracteres inválidos", "srv 01", true},
		{"com barra", "srv/01", true},
		{"reservado admin", "admin", true},
		{"reservado case-insensitive", "ROOT", true},
		{"reservado system", "system", true},
		{"reservado null", "null", true},
		{"vazio", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateServerID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveServerIDPrefersExplicit(t *testing.T) {
	id, err := ResolveServerID("backend-7")
	require.NoError(t, err)
	assert.Equal(t, "backend-7", id)
}

func TestResolveServerIDRejectsInvalidExplicit(t *testing.T) {
	_, err := ResolveServerID("admin")
	assert.Error(t, err)
}

func TestResolveServerIDFallsBack(t *testing.T) {
	id, err := ResolveServerID("")
	require.NoError(t, err)
	assert.NoError(t, ValidateServerID(id))
}

// fakeServerRepo implementa server.Repository em memória
type fakeServerRepo struct {
	servers map[string]*server.BackendServer
}

func newFakeServerRepo() *fakeServerRepo {
	return &fakeServerRepo{servers: make(map[string]*server.BackendServer)}
}

func (f *fakeServerRepo) Upsert(ctx context.Context, srv *server.BackendServer) error {
	f.servers[srv.ID] = srv
	return nil
}

func (f *fakeServerRepo) GetByID(ctx context.Context, id string) (*server.BackendServer, error) {
	srv, ok := f.servers[id]
	if !ok {
		return nil, server.ErrServerNotFound
	}
	return srv, nil
}

func (f *fakeServerRepo) ListEligible(ctx context.Context) ([]*server.BackendServer, error) {
	var out []*server.BackendServer
	for _, srv := range f.servers {
		if srv.IsActive && srv.IsHealthy {
			out = append(out, srv)
		}
	}
	return out, nil
}

func (f *fakeServerRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*server.BackendServer, error) {
	var out []*server.BackendServer
	for _, srv := range f.servers {
		if !srv.IsHealthy || srv.LastHealthCheck.Before(olderThan) {
			out = append(out, srv)
		}
	}
	return out, nil
}

func (f *fakeServerRepo) TouchHealth(ctx context.Context, id string, healthy bool, load int) error {
	if srv, ok := f.servers[id]; ok {
		srv.IsHealthy = healthy
		srv.CurrentLoad = load
		srv.LastHealthCheck = time.Now()
	}
	return nil
}

func (f *fakeServerRepo) SetActive(ctx context.Context, id string, active bool) error {
	if srv, ok := f.servers[id]; ok {
		srv.IsActive = active
	}
	return nil
}

// fakeDeviceRepo implementa device.Repository em memória com claim atômico
type fakeDeviceRepo struct {
	devices map[uuid.UUID]*device.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[uuid.UUID]*device.Device)}
}

func (f *fakeDeviceRepo) Create(ctx context.Context, dev *device.Device) error {
	f.devices[dev.ID] = dev
	return nil
}

func (f *fakeDeviceRepo) GetByID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	dev, ok := f.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return dev, nil
}

func (f *fakeDeviceRepo) List(ctx context.Context) ([]*device.Device, error) { return nil, nil }

func (f *fakeDeviceRepo) ListByStatuses(ctx context.Context, statuses ...device.Status) ([]*device.Device, error) {
	return nil, nil
}

func (f *fakeDeviceRepo) Update(ctx context.Context, dev *device.Device) error {
	f.devices[dev.ID] = dev
	return nil
}

func (f *fakeDeviceRepo) Claim(ctx context.Context, deviceID uuid.UUID, serverID string) (bool, error) {
	dev, ok := f.devices[deviceID]
	if !ok || dev.AssignedServerID != nil {
		return false, nil
	}
	dev.AssignedServerID = &serverID
	return true, nil
}

func (f *fakeDeviceRepo) GetAssignedServer(ctx context.Context, deviceID uuid.UUID) (*string, error) {
	dev, ok := f.devices[deviceID]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return dev.AssignedServerID, nil
}

func (f *fakeDeviceRepo) ReleaseByServer(ctx context.Context, serverID string) (int64, error) {
	var n int64
	for _, dev := range f.devices {
		if dev.AssignedServerID != nil && *dev.AssignedServerID == serverID {
			dev.AssignedServerID = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeDeviceRepo) CountAssigned(ctx context.Context, serverID string) (int, error) {
	n := 0
	for _, dev := range f.devices {
		if dev.AssignedServerID != nil && *dev.AssignedServerID == serverID {
			n++
		}
	}
	return n, nil
}

func (f *fakeDeviceRepo) SaveSession(ctx context.Context, deviceID uuid.UUID, blob []byte, savedAt time.Time) error {
	return nil
}

func newTestController(serverID string, servers *fakeServerRepo, devices *fakeDeviceRepo) *Controller {
	return NewController(ControllerConfig{
		ServerID:    serverID,
		URL:         "http://" + serverID + ":8080",
		Region:      "ap-southeast-1",
		Priority:    1,
		MaxCapacity: 50,
	}, servers, devices, nil, logger.SetupForTesting())
}

func TestClaimDeviceIsExclusive(t *testing.T) {
	servers := newFakeServerRepo()
	devices := newFakeDeviceRepo()
	deviceID := uuid.New()
	devices.devices[deviceID] = &device.Device{ID: deviceID}

	a := newTestController("backend-a", servers, devices)
	b := newTestController("backend-b", servers, devices)

	ctx := context.Background()

	wonA, err := a.ClaimDevice(ctx, deviceID)
	require.NoError(t, err)
	assert.True(t, wonA)

	wonB, err := b.ClaimDevice(ctx, deviceID)
	require.NoError(t, err)
	assert.False(t, wonB)

	assert.NoError(t, a.ValidateOwnership(ctx, deviceID))
	assert.ErrorIs(t, b.ValidateOwnership(ctx, deviceID), device.ErrNotOwner)
}

func TestValidateOwnershipAfterRelease(t *testing.T) {
	servers := newFakeServerRepo()
	devices := newFakeDeviceRepo()
	deviceID := uuid.New()
	devices.devices[deviceID] = &device.Device{ID: deviceID}

	c := newTestController("backend-a", servers, devices)
	ctx := context.Background()

	won, err := c.ClaimDevice(ctx, deviceID)
	require.NoError(t, err)
	require.True(t, won)

	_, err = devices.ReleaseByServer(ctx, "backend-a")
	require.NoError(t, err)

	assert.ErrorIs(t, c.ValidateOwnership(ctx, deviceID), device.ErrClaimLost)
}

func TestBestServerOrdering(t *testing.T) {
	servers := newFakeServerRepo()
	now := time.Now()
	servers.servers["low-priority"] = &server.BackendServer{
		ID: "low-priority", Priority: 1, CurrentLoad: 0, IsActive: true, IsHealthy: true, LastHealthCheck: now,
	}
	servers.servers["high-priority"] = &server.BackendServer{
		ID: "high-priority", Priority: 5, CurrentLoad: 10, IsActive: true, IsHealthy: true, LastHealthCheck: now,
	}
	servers.servers["unhealthy"] = &server.BackendServer{
		ID: "unhealthy", Priority: 9, IsActive: true, IsHealthy: false, LastHealthCheck: now,
	}

	c := newTestController("backend-a", servers, newFakeDeviceRepo())

	best, err := c.BestServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "high-priority", best.ID)
}

func TestBestServerTieBreaksByLoad(t *testing.T) {
	servers := newFakeServerRepo()
	now := time.Now()
	servers.servers["busy"] = &server.BackendServer{
		ID: "busy", Priority: 1, CurrentLoad: 40, IsActive: true, IsHealthy: true, LastHealthCheck: now,
	}
	servers.servers["idle"] = &server.BackendServer{
		ID: "idle", Priority: 1, CurrentLoad: 2, IsActive: true, IsHealthy: true, LastHealthCheck: now,
	}

	c := newTestController("backend-a", servers, newFakeDeviceRepo())

	best, err := c.BestServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "idle", best.ID)
}

func TestCanClaimRequiresBeingPreferred(t *testing.T) {
	servers := newFakeServerRepo()
	now := time.Now()
	servers.servers["backend-a"] = &server.BackendServer{
		ID: "backend-a", Priority: 1, MaxCapacity: 50, IsActive: true, IsHealthy: true, LastHealthCheck: now,
	}
	servers.servers["backend-b"] = &server.BackendServer{
		ID: "backend-b", Priority: 5, MaxCapacity: 50, IsActive: true, IsHealthy: true, LastHealthCheck: now,
	}

	a := newTestController("backend-a", servers, newFakeDeviceRepo())
	b := newTestController("backend-b", servers, newFakeDeviceRepo())
	ctx := context.Background()

	canA, err := a.CanClaim(ctx)
	require.NoError(t, err)
	assert.False(t, canA)

	canB, err := b.CanClaim(ctx)
	require.NoError(t, err)
	assert.True(t, canB)
}

func TestCanClaimDefersWithoutEligibleServers(t *testing.T) {
	c := newTestController("backend-a", newFakeServerRepo(), newFakeDeviceRepo())

	can, err := c.CanClaim(context.Background())
	require.NoError(t, err)
	assert.False(t, can)
}

func TestReapStaleAssignments(t *testing.T) {
	servers := newFakeServerRepo()
	devices := newFakeDeviceRepo()
	ctx := context.Background()

	// Servidor morto há 10 minutos com dois dispositivos
	servers.servers["dead"] = &server.BackendServer{
		ID: "dead", IsActive: true, IsHealthy: true,
		LastHealthCheck: time.Now().Add(-10 * time.Minute),
	}
	deadID := "dead"
	d1, d2 := uuid.New(), uuid.New()
	devices.devices[d1] = &device.Device{ID: d1, AssignedServerID: &deadID}
	devices.devices[d2] = &device.Device{ID: d2, AssignedServerID: &deadID}

	// Este servidor também está "stale" na visão do repositório, mas nunca
	// colhe os próprios dispositivos
	servers.servers["backend-a"] = &server.BackendServer{
		ID: "backend-a", IsActive: true, IsHealthy: true,
		LastHealthCheck: time.Now().Add(-10 * time.Minute),
	}
	selfID := "backend-a"
	d3 := uuid.New()
	devices.devices[d3] = &device.Device{ID: d3, AssignedServerID: &selfID}

	c := newTestController("backend-a", servers, devices)

	released, err := c.ReapStaleAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), released)

	assert.Nil(t, devices.devices[d1].AssignedServerID)
	assert.Nil(t, devices.devices[d2].AssignedServerID)
	require.NotNil(t, devices.devices[d3].AssignedServerID)
	assert.Equal(t, "backend-a", *devices.devices[d3].AssignedServerID)
}

func TestRegisterAndDeactivate(t *testing.T) {
	servers := newFakeServerRepo()
	c := newTestController("backend-a", servers, newFakeDeviceRepo())
	ctx := context.Background()

	require.NoError(t, c.Register(ctx))
	srv, err := servers.GetByID(ctx, "backend-a")
	require.NoError(t, err)
	assert.True(t, srv.IsActive)
	assert.True(t, srv.IsHealthy)

	require.NoError(t, c.Deactivate(ctx))
	srv, err = servers.GetByID(ctx, "backend-a")
	require.NoError(t, err)
	assert.False(t, srv.IsActive)
}
