package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"

	"wafleet/pkg/logger"
)

// Limites de processamento de imagens
const (
	MaxImageSize  = 5 * 1024 * 1024
	JPEGQuality   = 90
	StickerSide   = 512
	ThumbnailSide = 72
	WebPQuality   = 80
)

// ImageProcessor valida e transforma imagens para envio
type ImageProcessor struct {
	log logger.Logger
}

// NewImageProcessor cria um novo processador de imagens
func NewImageProcessor(log logger.Logger) *ImageProcessor {
	return &ImageProcessor{log: log.WithComponent("image-processor")}
}

// Validate verifica se os bytes formam uma imagem decodificável dentro
// dos limites de tamanho
func (p *ImageProcessor) Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("image data is empty")
	}
	if len(data) > MaxImageSize {
		return fmt.Errorf("image size %d exceeds maximum %d bytes", len(data), MaxImageSize)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("invalid image format: %w", err)
	}
	return nil
}

// ConvertToJPEG reencoda a imagem como JPEG
func (p *ImageProcessor) ConvertToJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail gera uma miniatura JPEG quadrada limitada a ThumbnailSide
func (p *ImageProcessor) Thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	small := resize.Thumbnail(ThumbnailSide, ThumbnailSide, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, small, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// ToSticker converte a imagem para WebP 512x512, o formato exigido para
// figurinhas
func (p *ImageProcessor) ToSticker(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	sized := resize.Thumbnail(StickerSide, StickerSide, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, sized, &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode webp sticker: %w", err)
	}
	return buf.Bytes(), nil
}
