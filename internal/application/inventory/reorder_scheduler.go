package inventory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/inventario-ledger/pkg/metrics"
)

// ReorderScheduler ejecuta barridos de reposición periódicos por tenant activo y publica
// las sugerencias. Un fallo al publicar se registra y no afecta el estado.
type ReorderScheduler struct {
	tenants   *core
	evaluator *ReplenishmentUseCase
	publisher SuggestionPublisher
	interval  time.Duration
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// NewReorderScheduler construye el scheduler. publisher puede ser nil (solo log).
func NewReorderScheduler(e *Engine, publisher SuggestionPublisher, interval time.Duration) *ReorderScheduler {
	return &ReorderScheduler{
		tenants:   e.core,
		evaluator: e.Replenishment,
		publisher: publisher,
		interval:  interval,
		log:       e.core.log.With().Str("component", "reorder_scheduler").Logger(),
		metrics:   e.core.metrics,
	}
}

// Run bloquea hasta que ctx se cancele. Con intervalo <= 0 no hace nada.
func (s *ReorderScheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info().Msg("scheduler de reposición deshabilitado")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("barrido de reposición fallido")
			}
		}
	}
}

// ScanOnce evalúa todos los tenants activos una vez.
func (s *ReorderScheduler) ScanOnce(ctx context.Context) error {
	tenants, err := s.tenants.repos.Tenants.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, t := range tenants {
		if err := ctx.Err(); err != nil {
			return err
		}
		suggestions, err := s.evaluator.EvaluateAll(ctx, t.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("tenant_id", t.ID).Msg("no se pudo evaluar el tenant")
			continue
		}
		if len(suggestions) == 0 || s.publisher == nil {
			continue
		}
		if err := s.publisher.Publish(ctx, suggestions); err != nil {
			s.metrics.RecordPublishFailure()
			s.log.Warn().Err(err).Str("tenant_id", t.ID).Int("suggestions", len(suggestions)).
				Msg("no se pudieron publicar las sugerencias")
		}
	}
	return nil
}
