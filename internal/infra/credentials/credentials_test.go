package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wafleet/internal/domain/device"
	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
)

// fakeDeviceRepo guarda dispositivos em memória para os testes do pacote
type fakeDeviceRepo struct {
	devices map[uuid.UUID]*device.Device
	saveErr error
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
	return false, nil
}

func (f *fakeDeviceRepo) GetAssignedServer(ctx context.Context, deviceID uuid.UUID) (*string, error) {
	return nil, nil
}

func (f *fakeDeviceRepo) ReleaseByServer(ctx context.Context, serverID string) (int64, error) {
	return 0, nil
}

func (f *fakeDeviceRepo) CountAssigned(ctx context.Context, serverID string) (int, error) {
	return 0, nil
}

func (f *fakeDeviceRepo) SaveSession(ctx context.Context, deviceID uuid.UUID, blob []byte, savedAt time.Time) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	dev, ok := f.devices[deviceID]
	if !ok {
		return device.ErrDeviceNotFound
	}
	dev.SessionData = blob
	dev.SessionSavedAt = &savedAt
	return nil
}

func TestCodecRoundTrip(t *testing.T) {
	creds := wasock.NewCreds()
	creds.Registered = true
	creds.Me = &wasock.BoundIdentity{JID: "628123456789@s.whatsapp.net", Name: "Test"}

	keys := map[wasock.KeyKind]map[string][]byte{
		wasock.KindPreKey:  {"1": {0x01, 0x02, 0x00, 0xff}},
		wasock.KindSession: {"628123456789.0": {0xde, 0xad, 0xbe, 0xef}},
	}

	data, err := Encode(creds, keys)
	require.NoError(t, err)

	gotCreds, gotKeys, err := Decode(data)
	require.NoError(t, err)

	assert.True(t, gotCreds.Registered)
	assert.Equal(t, creds.Me.JID, gotCreds.Me.JID)
	assert.Equal(t, creds.NoiseKey.Private, gotCreds.NoiseKey.Private)
	assert.Equal(t, creds.SignedPreKey.Signature, gotCreds.SignedPreKey.Signature)
	assert.Equal(t, []byte{0x01, 0x02, 0x00, 0xff}, gotKeys[wasock.KindPreKey]["1"])
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, gotKeys[wasock.KindSession]["628123456789.0"])
}

func TestDecodeRejectsMalformedBlobs(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("not json at all")},
		{"missing creds", []byte(`{"version":1,"keys":{}}`)},
		{"unknown version", []byte(`{"version":99,"creds":{"registered":false}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestStoreLoadTreatsCorruptedBlobAsAbsent(t *testing.T) {
	repo := newFakeDeviceRepo()
	deviceID := uuid.New()
	repo.devices[deviceID] = &device.Device{
		ID:          deviceID,
		SessionData: []byte("corrupted-bytes"),
	}

	store := NewStore(repo, logger.SetupForTesting())

	st, err := store.Load(context.Background(), deviceID)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestStoreRoundTrip(t *testing.T) {
	repo := newFakeDeviceRepo()
	deviceID := uuid.New()
	repo.devices[deviceID] = &device.Device{ID: deviceID}

	store := NewStore(repo, logger.SetupForTesting())

	creds := wasock.NewCreds()
	err := store.Save(context.Background(), deviceID, &State{
		Creds: creds,
		Keys:  map[wasock.KeyKind]map[string][]byte{wasock.KindPreKey: {"7": {0x07}}},
	})
	require.NoError(t, err)

	st, err := store.Load(context.Background(), deviceID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, creds.RegistrationID, st.Creds.RegistrationID)
	assert.Equal(t, []byte{0x07}, st.Keys[wasock.KindPreKey]["7"])
}

func TestAuthStateKeyMutationsPersistFullBlob(t *testing.T) {
	repo := newFakeDeviceRepo()
	deviceID := uuid.New()
	repo.devices[deviceID] = &device.Device{ID: deviceID}

	store := NewStore(repo, logger.SetupForTesting())
	auth := NewAuthState(deviceID, nil, store, logger.SetupForTesting())

	ctx := context.Background()
	err := auth.Keys().Set(ctx, map[wasock.KeyKind]map[string][]byte{
		wasock.KindSenderKey: {"group1": {0xaa}},
	})
	require.NoError(t, err)

	// O blob persistido deve conter a chave recém-gravada
	st, err := store.Load(ctx, deviceID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, []byte{0xaa}, st.Keys[wasock.KindSenderKey]["group1"])

	// Remoção via valor nil
	err = auth.Keys().Set(ctx, map[wasock.KeyKind]map[string][]byte{
		wasock.KindSenderKey: {"group1": nil},
	})
	require.NoError(t, err)

	got, err := auth.Keys().Get(ctx, wasock.KindSenderKey, []string{"group1"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAuthStateSwallowsStorageFailures(t *testing.T) {
	repo := newFakeDeviceRepo()
	deviceID := uuid.New()
	repo.devices[deviceID] = &device.Device{ID: deviceID}
	repo.saveErr = assert.AnError

	store := NewStore(repo, logger.SetupForTesting())
	auth := NewAuthState(deviceID, nil, store, logger.SetupForTesting())

	// A mutação não pode propagar o erro de persistência
	err := auth.Keys().Set(context.Background(), map[wasock.KeyKind]map[string][]byte{
		wasock.KindPreKey: {"1": {0x01}},
	})
	assert.NoError(t, err)

	// O estado em memória segue consistente
	got, err := auth.Keys().Get(context.Background(), wasock.KindPreKey, []string{"1"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, got["1"])
}

func TestMarkRegisteredPersistsBinding(t *testing.T) {
	repo := newFakeDeviceRepo()
	deviceID := uuid.New()
	repo.devices[deviceID] = &device.Device{ID: deviceID}

	store := NewStore(repo, logger.SetupForTesting())
	auth := NewAuthState(deviceID, nil, store, logger.SetupForTesting())

	auth.MarkRegistered(context.Background(), "628111222333@s.whatsapp.net", "Fulano")

	st, err := store.Load(context.Background(), deviceID)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.Creds.Registered)
	assert.Equal(t, "628111222333@s.whatsapp.net", st.Creds.Me.JID)
}
