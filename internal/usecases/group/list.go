package group

import (
	"context"

	"github.com/google/uuid"

	"wafleet/internal/domain/device"
	"wafleet/internal/infra/fleet"
	"wafleet/internal/infra/whatsapp"
	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
)

// ListGroupsUseCase implementa o caso de uso de listagem de grupos
type ListGroupsUseCase struct {
	devices  device.Repository
	fleet    *fleet.Controller
	registry *whatsapp.Registry
	logger   logger.Logger
}

// NewListGroupsUseCase cria uma nova instância do caso de uso
func NewListGroupsUseCase(
	devices device.Repository,
	fleetCtrl *fleet.Controller,
	registry *whatsapp.Registry,
	log logger.Logger,
) *ListGroupsUseCase {
	return &ListGroupsUseCase{
		devices:  devices,
		fleet:    fleetCtrl,
		registry: registry,
		logger:   log.WithComponent("list-groups"),
	}
}

// Execute lista os grupos dos quais o dispositivo participa
func (uc *ListGroupsUseCase) Execute(ctx context.Context, deviceID uuid.UUID) ([]wasock.GroupInfo, error) {
	if _, err := uc.devices.GetByID(ctx, deviceID); err != nil {
		return nil, err
	}

	if err := uc.fleet.ValidateOwnership(ctx, deviceID); err != nil {
		return nil, err
	}

	conn, ok := uc.registry.Get(deviceID)
	if !ok {
		return nil, device.NewDeviceError(deviceID, "groups", device.ErrSocketNotFound)
	}

	groups, err := conn.Groups(ctx)
	if err != nil {
		uc.logger.WithField("deviceId", deviceID).WithError(err).
			Error().Msg("Failed to list groups")
		return nil, err
	}

	return groups, nil
}
