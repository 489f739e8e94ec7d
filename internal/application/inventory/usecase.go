package inventory

import (
	"github.com/rs/zerolog"

	"github.com/jhoicas/inventario-ledger/pkg/metrics"
)

// Engine agrupa los casos de uso del núcleo de inventario sobre las mismas dependencias.
type Engine struct {
	core *core

	Ledger        *LedgerUseCase
	Valuation     *ValuationUseCase
	Uom           *UomUseCase
	Reservations  *ReservationUseCase
	Replenishment *ReplenishmentUseCase
	Positions     *PositionQuery
	Reconcile     *ReconcileUseCase
}

// NewEngine construye el motor. m puede ser nil.
func NewEngine(repos Repositories, opts Options, log zerolog.Logger, m *metrics.Metrics) *Engine {
	c := newCore(repos, opts, log.With().Str("component", "ledger").Logger(), m)
	return &Engine{
		core:          c,
		Ledger:        &LedgerUseCase{core: c},
		Valuation:     &ValuationUseCase{core: c},
		Uom:           &UomUseCase{core: c},
		Reservations:  &ReservationUseCase{core: c},
		Replenishment: &ReplenishmentUseCase{core: c},
		Positions:     &PositionQuery{core: c},
		Reconcile:     &ReconcileUseCase{core: c},
	}
}
