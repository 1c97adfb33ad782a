package message

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"wafleet/internal/domain/device"
	"wafleet/internal/infra/fleet"
	"wafleet/internal/infra/media"
	"wafleet/internal/infra/whatsapp"
	"wafleet/internal/wasock"
	"wafleet/pkg/logger"
	"wafleet/pkg/phone"
)

// MaxMessageLength é o limite de caracteres de uma mensagem de saída
const MaxMessageLength = 10000

// SendMessageRequest é o corpo da requisição de envio de mensagem
type SendMessageRequest struct {
	DeviceID  uuid.UUID `json:"deviceId" validate:"required"`
	Number    string    `json:"number" validate:"required"`
	Message   string    `json:"message" validate:"required"`
	MediaURL  string    `json:"mediaUrl,omitempty"`
	MediaType string    `json:"mediaType,omitempty" validate:"omitempty,oneof=image video audio document"`
}

// SendMessageResponse é o resultado do envio
type SendMessageResponse struct {
	DeviceID uuid.UUID `json:"deviceId"`
	Number   string    `json:"number"`
	Status   string    `json:"status"`
}

// SendMessageUseCase implementa o caso de uso de envio de mensagem avulsa
type SendMessageUseCase struct {
	devices  device.Repository
	fleet    *fleet.Controller
	registry *whatsapp.Registry
	fetcher  *media.Fetcher
	images   *media.ImageProcessor
	validate *validator.Validate
	logger   logger.Logger
}

// NewSendMessageUseCase cria uma nova instância do caso de uso
func NewSendMessageUseCase(
	devices device.Repository,
	fleetCtrl *fleet.Controller,
	registry *whatsapp.Registry,
	fetcher *media.Fetcher,
	images *media.ImageProcessor,
	log logger.Logger,
) *SendMessageUseCase {
	return &SendMessageUseCase{
		devices:  devices,
		fleet:    fleetCtrl,
		registry: registry,
		fetcher:  fetcher,
		images:   images,
		validate: validator.New(),
		logger:   log.WithComponent("send-message"),
	}
}

// Execute valida a requisição e envia a mensagem pelo socket do dispositivo
func (uc *SendMessageUseCase) Execute(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	if err := uc.validate.Struct(req); err != nil {
		return nil, err
	}

	if len(req.Message) > MaxMessageLength {
		return nil, fmt.Errorf("message is too long (max %d characters)", MaxMessageLength)
	}

	if req.MediaURL != "" {
		if err := media.ValidateMediaURL(req.MediaURL); err != nil {
			return nil, fmt.Errorf("invalid media url: %w", err)
		}
	}

	if _, err := uc.devices.GetByID(ctx, req.DeviceID); err != nil {
		return nil, err
	}

	// O dispositivo precisa estar sob posse deste servidor; a releitura do
	// banco cobre reatribuições feitas depois do claim
	if err := uc.fleet.ValidateOwnership(ctx, req.DeviceID); err != nil {
		return nil, err
	}

	conn, ok := uc.registry.Get(req.DeviceID)
	if !ok {
		return nil, device.NewDeviceError(req.DeviceID, "send", device.ErrSocketNotFound)
	}

	normalized, err := phone.Normalize(req.Number)
	if err != nil {
		return nil, err
	}

	msg := &wasock.Message{Text: req.Message}
	if req.MediaURL != "" {
		asset, err := uc.fetcher.Fetch(ctx, req.MediaURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch media: %w", err)
		}

		kind := mediaKind(req.MediaType)
		data, mimeType := asset.Data, asset.MimeType
		if kind == wasock.MediaImage && uc.images != nil {
			if err := uc.images.Validate(data); err != nil {
				return nil, fmt.Errorf("invalid image: %w", err)
			}
			jpg, err := uc.images.ConvertToJPEG(data)
			if err != nil {
				return nil, fmt.Errorf("failed to convert image: %w", err)
			}
			data, mimeType = jpg, "image/jpeg"
		}

		msg.Media = &wasock.Media{
			Kind:     kind,
			Data:     data,
			MimeType: mimeType,
		}
		msg.Caption = req.Message
	}

	if err := conn.SendMessage(ctx, phone.UserJID(normalized), msg); err != nil {
		uc.logger.WithField("deviceId", req.DeviceID).WithError(err).
			Error().Msg("Failed to send message")
		return nil, err
	}

	uc.logger.WithFields(map[string]interface{}{
		"deviceId": req.DeviceID,
		"number":   normalized,
	}).Info().Msg("Message sent")

	return &SendMessageResponse{
		DeviceID: req.DeviceID,
		Number:   normalized,
		Status:   "sent",
	}, nil
}

func mediaKind(mediaType string) wasock.MediaKind {
	switch wasock.MediaKind(mediaType) {
	case wasock.MediaVideo, wasock.MediaAudio, wasock.MediaDocument:
		return wasock.MediaKind(mediaType)
	}
	return wasock.MediaImage
}
