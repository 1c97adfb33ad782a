package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wafleet/pkg/logger"
)

func jpegFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestValidateMediaURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https público", "https://example.com/image.jpg", false},
		{"esquema file", "file:///etc/passwd", true},
		{"esquema ftp", "ftp://example.com/a.jpg", true},
		{"localhost", "http://localhost/a.jpg", true},
		{"loopback", "http://127.0.0.1/a.jpg", true},
		{"rede privada 10", "http://10.0.0.5/a.jpg", true},
		{"rede privada 192.168", "http://192.168.1.1/a.jpg", true},
		{"link-local", "http://169.254.169.254/latest/meta-data", true},
		{"não especificado", "http://0.0.0.0/a.jpg", true},
		{"sem host", "http:///a.jpg", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMediaURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetchDataURL(t *testing.T) {
	f := NewFetcher(logger.SetupForTesting())

	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02}
	raw := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)

	asset, err := f.Fetch(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, payload, asset.Data)
	assert.Equal(t, "image/jpeg", asset.MimeType)
}

func TestFetchDataURLRejectsEmptyPayload(t *testing.T) {
	f := NewFetcher(logger.SetupForTesting())

	_, err := f.Fetch(context.Background(), "data:image/jpeg;base64,")
	assert.Error(t, err)
}

func TestProcessorValidate(t *testing.T) {
	p := NewImageProcessor(logger.SetupForTesting())

	assert.Error(t, p.Validate(nil))
	assert.Error(t, p.Validate([]byte("not an image")))
	assert.NoError(t, p.Validate(jpegFixture(t, 64, 64)))
}

func TestProcessorThumbnailShrinks(t *testing.T) {
	p := NewImageProcessor(logger.SetupForTesting())

	thumb, err := p.Thumbnail(jpegFixture(t, 640, 480))
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.LessOrEqual(t, cfg.Width, ThumbnailSide)
	assert.LessOrEqual(t, cfg.Height, ThumbnailSide)
}

func TestProcessorConvertToJPEG(t *testing.T) {
	p := NewImageProcessor(logger.SetupForTesting())

	out, err := p.ConvertToJPEG(jpegFixture(t, 32, 32))
	require.NoError(t, err)

	// Assinatura JPEG
	require.GreaterOrEqual(t, len(out), 3)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, out[:3])
}
