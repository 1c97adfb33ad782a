// Package media implementa a busca e o processamento de mídia para envio:
// download com proteção contra SSRF, data URLs e transformação de imagens.
package media

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vincent-petithory/dataurl"

	"wafleet/pkg/logger"
)

const (
	// MaxMediaSize limita o tamanho de mídia baixada
	MaxMediaSize = 16 * 1024 * 1024

	// fetchAttempts é o número de tentativas de download
	fetchAttempts = 3

	// fetchTimeout limita cada tentativa individual
	fetchTimeout = 30 * time.Second
)

// Asset é uma mídia resolvida pronta para upload
type Asset struct {
	Data     []byte
	MimeType string
}

// Fetcher resolve URLs de mídia em bytes, aceitando http(s) público e
// data URLs embutidas
type Fetcher struct {
	client *http.Client
	log    logger.Logger
}

// NewFetcher cria um buscador de mídia
func NewFetcher(log logger.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		log:    log.WithComponent("media-fetcher"),
	}
}

// Fetch resolve a URL em bytes. Downloads HTTP são tentados até três
// vezes com espera progressiva entre tentativas.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return f.decodeDataURL(rawURL)
	}

	if err := ValidateMediaURL(rawURL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		asset, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return asset, nil
		}
		lastErr = err

		f.log.WithFields(map[string]interface{}{
			"url":     rawURL,
			"attempt": attempt,
		}).WithError(err).Warn().Msg("Media download failed")

		if attempt < fetchAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	return nil, fmt.Errorf("failed to fetch media after %d attempts: %w", fetchAttempts, lastErr)
}

func (f *Fetcher) decodeDataURL(rawURL string) (*Asset, error) {
	decoded, err := dataurl.DecodeString(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data url: %w", err)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("data url carries no payload")
	}
	if len(decoded.Data) > MaxMediaSize {
		return nil, fmt.Errorf("media size %d exceeds maximum %d bytes", len(decoded.Data), MaxMediaSize)
	}
	return &Asset{Data: decoded.Data, MimeType: decoded.ContentType()}, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}
	if len(data) > MaxMediaSize {
		return nil, fmt.Errorf("media exceeds maximum %d bytes", MaxMediaSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media body is empty")
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	return &Asset{Data: data, MimeType: mimeType}, nil
}

// ValidateMediaURL rejeita URLs que não sejam http(s) público: esquemas
// locais, hosts de loopback e faixas de endereço privadas
func ValidateMediaURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid media url: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("media url missing host")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("media url host %q is not allowed", host)
	}

	// Host já em forma de IP é validado sem DNS
	if ip := net.ParseIP(host); ip != nil {
		if isForbiddenIP(ip) {
			return fmt.Errorf("media url resolves to forbidden address %s", ip)
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("failed to resolve media host %q: %w", host, err)
	}
	for _, ip := range ips {
		if isForbiddenIP(ip) {
			return fmt.Errorf("media url resolves to forbidden address %s", ip)
		}
	}
	return nil
}

func isForbiddenIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
