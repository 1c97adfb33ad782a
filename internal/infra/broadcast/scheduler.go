package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"wafleet/internal/domain/broadcast"
	"wafleet/pkg/logger"
)

const (
	// promoteInterval é o período do tick de promoção de rascunhos
	promoteInterval = 30 * time.Second

	// requeueInterval é o período do tick de reenfileiramento
	requeueInterval = 15 * time.Second
)

// Scheduler promove rascunhos agendados e garante que todo broadcast em
// processing tenha um job em voo. Sem fila configurada, o despacho cai
// para execução direta neste servidor.
type Scheduler struct {
	broadcasts broadcast.Repository
	queue      *Queue
	worker     *Worker
	log        logger.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewScheduler cria o agendador. queue nula ativa o modo de despacho
// direto por polling.
func NewScheduler(broadcasts broadcast.Repository, queue *Queue, worker *Worker, log logger.Logger) *Scheduler {
	return &Scheduler{
		broadcasts: broadcasts,
		queue:      queue,
		worker:     worker,
		log:        log.WithComponent("broadcast-scheduler"),
		inFlight:   make(map[uuid.UUID]struct{}),
	}
}

// Run executa os dois ticks até o contexto encerrar
func (s *Scheduler) Run(ctx context.Context) {
	promoteTicker := time.NewTicker(promoteInterval)
	defer promoteTicker.Stop()
	requeueTicker := time.NewTicker(requeueInterval)
	defer requeueTicker.Stop()

	// Uma passada imediata cobre broadcasts pendentes de antes do boot
	s.promoteDue(ctx)
	s.requeueProcessing(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-promoteTicker.C:
			s.promoteDue(ctx)
		case <-requeueTicker.C:
			s.requeueProcessing(ctx)
		}
	}
}

// promoteDue promove rascunhos vencidos via transição condicional e
// despacha os que este servidor promoveu
func (s *Scheduler) promoteDue(ctx context.Context) {
	due, err := s.broadcasts.ListDueDrafts(ctx, time.Now())
	if err != nil {
		s.log.WithError(err).Error().Msg("Failed to list due drafts")
		return
	}

	for _, b := range due {
		won, err := s.broadcasts.Promote(ctx, b.ID)
		if err != nil {
			s.log.WithField("broadcastId", b.ID).WithError(err).
				Error().Msg("Failed to promote draft")
			continue
		}
		if !won {
			// Outro servidor promoveu primeiro
			continue
		}

		s.log.WithField("broadcastId", b.ID).Info().Msg("Draft promoted to processing")
		s.dispatch(ctx, b.ID)
	}
}

// requeueProcessing reenfileira broadcasts em processing sem job em voo.
// O TaskID por broadcast torna o reenfileiramento idempotente.
func (s *Scheduler) requeueProcessing(ctx context.Context) {
	processing, err := s.broadcasts.ListByStatus(ctx, broadcast.StatusProcessing)
	if err != nil {
		s.log.WithError(err).Error().Msg("Failed to list processing broadcasts")
		return
	}

	for _, b := range processing {
		s.dispatch(ctx, b.ID)
	}
}

// dispatch publica o job na fila; com a fila indisponível ou ausente, o
// worker roda diretamente neste servidor (no máximo uma execução local
// por broadcast)
func (s *Scheduler) dispatch(ctx context.Context, broadcastID uuid.UUID) {
	if s.queue != nil {
		err := s.queue.Enqueue(broadcastID)
		if err == nil || err == ErrAlreadyEnqueued {
			return
		}
		s.log.WithField("broadcastId", broadcastID).WithError(err).
			Warn().Msg("Queue unreachable, dispatching directly")
	}

	s.runDirect(ctx, broadcastID)
}

func (s *Scheduler) runDirect(ctx context.Context, broadcastID uuid.UUID) {
	s.mu.Lock()
	if _, running := s.inFlight[broadcastID]; running {
		s.mu.Unlock()
		return
	}
	s.inFlight[broadcastID] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, broadcastID)
			s.mu.Unlock()
		}()

		if err := s.worker.Run(ctx, broadcastID); err != nil {
			s.log.WithField("broadcastId", broadcastID).WithError(err).
				Warn().Msg("Direct dispatch failed, will retry on next tick")
		}
	}()
}
