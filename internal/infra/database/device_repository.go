package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"wafleet/internal/domain/device"
)

// deviceRepository implementa a interface device.Repository
type deviceRepository struct {
	db *bun.DB
}

// NewDeviceRepository cria uma nova instância do repositório de dispositivos
func NewDeviceRepository(db *bun.DB) device.Repository {
	return &deviceRepository{db: db}
}

// Create cria um novo dispositivo no banco de dados
func (r *deviceRepository) Create(ctx context.Context, dev *device.Device) error {
	if dev.ID == uuid.Nil {
		dev.ID = uuid.New()
	}
	now := time.Now()
	dev.CreatedAt = now
	dev.UpdatedAt = now
	if dev.Status == "" {
		dev.Status = device.StatusDisconnected
	}

	_, err := r.db.NewInsert().Model(dev).Exec(ctx)
	return err
}

// GetByID busca um dispositivo pelo ID
func (r *deviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*device.Device, error) {
	dev := new(device.Device)
	err := r.db.NewSelect().Model(dev).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, device.ErrDeviceNotFound
		}
		return nil, err
	}
	return dev, nil
}

// List retorna todos os dispositivos
func (r *deviceRepository) List(ctx context.Context) ([]*device.Device, error) {
	var devices []*device.Device
	err := r.db.NewSelect().Model(&devices).Order("created_at ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// ListByStatuses retorna dispositivos em qualquer um dos status informados
func (r *deviceRepository) ListByStatuses(ctx context.Context, statuses ...device.Status) ([]*device.Device, error) {
	var devices []*device.Device
	err := r.db.NewSelect().
		Model(&devices).
		Where("status IN (?)", bun.In(statuses)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// Update persiste a linha de estado do dispositivo. As colunas do blob
// de sessão ficam de fora: elas pertencem a SaveSession.
func (r *deviceRepository) Update(ctx context.Context, dev *device.Device) error {
	dev.UpdatedAt = time.Now()

	_, err := r.db.NewUpdate().
		Model(dev).
		ExcludeColumn("session_data", "session_saved_at", "created_at").
		Where("id = ?", dev.ID).
		Exec(ctx)

	return err
}

// Claim tenta atribuir o dispositivo ao servidor de forma atômica. O UPDATE
// condicional só modifica a linha quando assigned_server_id está nulo; a
// contagem de linhas decide quem ganhou a corrida.
func (r *deviceRepository) Claim(ctx context.Context, deviceID uuid.UUID, serverID string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*device.Device)(nil)).
		Set("assigned_server_id = ?", serverID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", deviceID).
		Where("assigned_server_id IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// GetAssignedServer relê assigned_server_id direto do banco, sem cache
func (r *deviceRepository) GetAssignedServer(ctx context.Context, deviceID uuid.UUID) (*string, error) {
	var assigned sql.NullString
	err := r.db.NewSelect().
		Model((*device.Device)(nil)).
		Column("assigned_server_id").
		Where("id = ?", deviceID).
		Scan(ctx, &assigned)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, device.ErrDeviceNotFound
		}
		return nil, err
	}
	if !assigned.Valid {
		return nil, nil
	}
	return &assigned.String, nil
}

// ReleaseByServer limpa a atribuição de todos os dispositivos de um servidor
func (r *deviceRepository) ReleaseByServer(ctx context.Context, serverID string) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*device.Device)(nil)).
		Set("assigned_server_id = NULL").
		Set("updated_at = ?", time.Now()).
		Where("assigned_server_id = ?", serverID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountAssigned conta dispositivos atribuídos a um servidor
func (r *deviceRepository) CountAssigned(ctx context.Context, serverID string) (int, error) {
	return r.db.NewSelect().
		Model((*device.Device)(nil)).
		Where("assigned_server_id = ?", serverID).
		Count(ctx)
}

// SaveSession grava o blob de credenciais com timestamp de gravação
func (r *deviceRepository) SaveSession(ctx context.Context, deviceID uuid.UUID, blob []byte, savedAt time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*device.Device)(nil)).
		Set("session_data = ?", blob).
		Set("session_saved_at = ?", savedAt).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", deviceID).
		Exec(ctx)

	return err
}
