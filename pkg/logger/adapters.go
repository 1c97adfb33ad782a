package logger

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// ============================================================================
// WHATSMEOW ADAPTER
// ============================================================================

// WhatsmeowLoggerAdapter adapta nosso Logger para a interface waLog do whatsmeow
type WhatsmeowLoggerAdapter struct {
	logger Logger
}

// NewWhatsmeowLoggerAdapter cria adaptador para whatsmeow
func NewWhatsmeowLoggerAdapter(logger Logger) waLog.Logger {
	return &WhatsmeowLoggerAdapter{logger: logger}
}

// Implementação da interface waLog.Logger
func (w *WhatsmeowLoggerAdapter) Errorf(msg string, args ...interface{}) {
	w.logger.Error().Msgf(msg, args...)
}

func (w *WhatsmeowLoggerAdapter) Warnf(msg string, args ...interface{}) {
	w.logger.Warn().Msgf(msg, args...)
}

func (w *WhatsmeowLoggerAdapter) Infof(msg string, args ...interface{}) {
	w.logger.Info().Msgf(msg, args...)
}

func (w *WhatsmeowLoggerAdapter) Debugf(msg string, args ...interface{}) {
	w.logger.Debug().Msgf(msg, args...)
}

func (w *WhatsmeowLoggerAdapter) Sub(module string) waLog.Logger {
	if module == "" {
		return w
	}
	return &WhatsmeowLoggerAdapter{logger: w.logger.WithComponent(module)}
}

// ============================================================================
// BUN ORM ADAPTER
// ============================================================================

// BunQueryHook implementa hook para logging de queries do Bun ORM
type BunQueryHook struct {
	logger Logger
}

// NewBunQueryHook cria um novo hook para logging de queries do Bun
func NewBunQueryHook(logger Logger) bun.QueryHook {
	return &BunQueryHook{
		logger: logger.WithComponent("database"),
	}
}

// BeforeQuery é chamado antes da execução da query
func (h *BunQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery é chamado após a execução da query
func (h *BunQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)
	durationMs := duration.Milliseconds()

	if event.Err != nil {
		// Erros sempre são logados com detalhes completos
		h.logger.Error().
			Err(event.Err).
			Str("query", h.sanitizeQuery(event.Query)).
			Int64("duration_ms", durationMs).
			Msg("Database query failed")
		return
	}

	// Queries lentas (> 100ms) sempre logam como WARNING
	if durationMs > 100 {
		h.logger.Warn().
			Str("query", h.sanitizeQuery(event.Query)).
			Int64("duration_ms", durationMs).
			Msg("Slow database query")
		return
	}

	// Queries rotineiras (ticks do supervisor e health) só em TRACE
	if h.isRoutineQuery(event.Query) {
		h.logger.Trace().
			Int64("duration_ms", durationMs).
			Msg("Fast DB operation")
		return
	}

	h.logger.Debug().
		Int64("duration_ms", durationMs).
		Msg("DB operation completed")
}

// isRoutineQuery verifica se é uma query rotineira (ticks de health, updated_at)
func (h *BunQueryHook) isRoutineQuery(query string) bool {
	routinePatterns := []string{
		"set last_health_check",
		"set updated_at",
		"set status =",
		"set saved_at",
	}

	queryLower := strings.ToLower(query)
	for _, pattern := range routinePatterns {
		if strings.Contains(queryLower, pattern) {
			return true
		}
	}
	return false
}

// sanitizeQuery remove dados sensíveis e encurta a query para logging
func (h *BunQueryHook) sanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	const maxLength = 200
	if len(query) > maxLength {
		query = query[:maxLength] + "..."
	}

	var builder strings.Builder
	builder.Grow(len(query))

	var lastWasSpace bool
	for _, r := range query {
		switch r {
		case '\n', '\t', '\r', ' ':
			if !lastWasSpace {
				builder.WriteByte(' ')
				lastWasSpace = true
			}
		default:
			builder.WriteRune(r)
			lastWasSpace = false
		}
	}

	return strings.TrimSpace(builder.String())
}
