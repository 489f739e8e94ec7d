package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// ReconcileUseCase reproduce el ledger desde cero y lo compara con el estado guardado.
type ReconcileUseCase struct {
	*core
}

// Discrepancy diferencia entre el valor reproducido y el almacenado.
type Discrepancy struct {
	Field    string
	Expected int64 // reproducido desde el ledger
	Actual   int64 // almacenado
}

// ReconcileReport resultado de conciliar una posición.
type ReconcileReport struct {
	TenantID      string
	ProductID     string
	Moves         int
	OnHand        int64
	Discrepancies []Discrepancy
}

// OK indica que no hay diferencias.
func (r *ReconcileReport) OK() bool {
	return len(r.Discrepancies) == 0
}

// Reconcile compara físico (disponible + reservado), saldos por ubicación, secuencia y,
// en FIFO, la suma de capas contra la reproducción del ledger.
func (uc *ReconcileUseCase) Reconcile(ctx context.Context, tenantID, productID string) (*ReconcileReport, error) {
	if tenantID == "" || productID == "" {
		return nil, domain.ErrInvalidInput
	}
	key := entity.PositionKey{TenantID: tenantID, ProductID: productID}
	moves, err := uc.repos.Moves.ListByProduct(ctx, key, 0, 0)
	if err != nil {
		return nil, err
	}
	rep := &ReconcileReport{TenantID: tenantID, ProductID: productID, Moves: len(moves)}

	replayed := Replay(moves)
	rep.OnHand = replayed.OnHand

	pos, err := uc.repos.Positions.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	rep.add("on_hand", replayed.OnHand, pos.OnHand())
	rep.add("last_sequence", replayed.LastSequence, pos.LastSequence)

	balances, err := uc.repos.Positions.ListLocationBalances(ctx, key)
	if err != nil {
		return nil, err
	}
	stored := make(map[string]int64, len(balances))
	for _, b := range balances {
		stored[b.LocationID] = b.Quantity
	}
	locs := make([]string, 0, len(stored)+len(replayed.Locations))
	seen := map[string]bool{}
	for id := range replayed.Locations {
		locs = append(locs, id)
		seen[id] = true
	}
	for id := range stored {
		if !seen[id] {
			locs = append(locs, id)
		}
	}
	sort.Strings(locs)
	for _, id := range locs {
		rep.add("location:"+id, replayed.Locations[id], stored[id])
	}

	state, err := uc.repos.Valuations.GetState(ctx, key)
	if err != nil {
		return nil, err
	}
	if state != nil {
		rep.add("valued_quantity", replayed.OnHand, state.Quantity)
		if state.Method == entity.ValuationFIFO {
			layers, err := uc.repos.Valuations.ListLayers(ctx, key)
			if err != nil {
				return nil, err
			}
			var sum int64
			for _, l := range layers {
				sum += l.RemainingQuantity
			}
			rep.add("fifo_layers", state.Quantity, sum)
		}
	}

	if !rep.OK() {
		ev := uc.log.Warn().Str("position", key.String()).Int("discrepancies", len(rep.Discrepancies))
		for _, d := range rep.Discrepancies {
			ev = ev.Str(d.Field, fmt.Sprintf("expected=%d actual=%d", d.Expected, d.Actual))
		}
		ev.Msg("posición con diferencias contra el ledger")
	}
	return rep, nil
}

// ReconcileTenant concilia todas las posiciones del tenant.
func (uc *ReconcileUseCase) ReconcileTenant(ctx context.Context, tenantID string) ([]*ReconcileReport, error) {
	positions, err := uc.repos.Positions.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]*ReconcileReport, 0, len(positions))
	for _, p := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := uc.Reconcile(ctx, p.TenantID, p.ProductID)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (r *ReconcileReport) add(field string, expected, actual int64) {
	if expected != actual {
		r.Discrepancies = append(r.Discrepancies, Discrepancy{Field: field, Expected: expected, Actual: actual})
	}
}

// ReplayResult saldos reproducidos desde el ledger vacío.
type ReplayResult struct {
	OnHand       int64
	LastSequence int64
	Locations    map[string]int64
}

// Replay reproduce físico y saldos por ubicación desde la lista de movimientos ordenada por secuencia.
// Las patas de un traslado suman cero al físico y mueven el saldo entre ubicaciones.
func Replay(moves []*entity.StockMove) ReplayResult {
	r := ReplayResult{Locations: make(map[string]int64)}
	for _, m := range moves {
		if m.Sequence > r.LastSequence {
			r.LastSequence = m.Sequence
		}
		if m.Type == entity.MoveTypeTransfer {
			if m.Quantity < 0 && m.SourceLocationID != nil {
				r.Locations[*m.SourceLocationID] += m.Quantity
			}
			if m.Quantity > 0 && m.DestinationLocationID != nil {
				r.Locations[*m.DestinationLocationID] += m.Quantity
			}
			continue
		}
		r.OnHand += m.Quantity
		if m.Quantity > 0 && m.DestinationLocationID != nil {
			r.Locations[*m.DestinationLocationID] += m.Quantity
		}
		if m.Quantity < 0 && m.SourceLocationID != nil {
			r.Locations[*m.SourceLocationID] += m.Quantity
		}
	}
	return r
}
