package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
)

// bookSession acumula los cambios de valoración de una transacción para persistirlos al final.
type bookSession struct {
	book    *inventory.Book
	changed []*entity.CostLayer
	entries []*entity.ValuationEntry
}

// openBook carga el libro de costo de la posición dentro de la tx. Si el método resuelto
// difiere del almacenado aplica el re-baseline antes de cualquier movimiento.
// currency vacío conserva la moneda del libro.
func (c *core) openBook(ctx context.Context, tx TxRepos, key entity.PositionKey, method entity.ValuationMethod, currency string, seq int64, now time.Time) (*bookSession, error) {
	state, err := tx.Valuations.GetState(ctx, key)
	if err != nil {
		return nil, err
	}
	if state == nil {
		cur := currency
		if cur == "" {
			cur = c.opts.DefaultCurrency
		}
		state = &entity.ValuationState{
			TenantID:     key.TenantID,
			ProductID:    key.ProductID,
			Method:       method,
			CurrencyCode: cur,
			UpdatedAt:    now,
		}
	}
	if currency != "" && state.CurrencyCode != currency {
		if state.Quantity != 0 || state.TotalValue != 0 {
			return nil, domain.NewError(domain.ErrCostInconsistency, "moneda distinta a la del saldo valorado").
				With("currency", currency).With("book_currency", state.CurrencyCode)
		}
		state.CurrencyCode = currency
	}
	layers, err := tx.Valuations.ListLayers(ctx, key)
	if err != nil {
		return nil, err
	}
	s := &bookSession{book: &inventory.Book{State: state, Layers: layers}}

	if state.Method != method {
		from := state.Method
		imp, err := s.book.Rebaseline(method, "", seq, now)
		if err != nil {
			return nil, err
		}
		s.record(entity.EntryRebaseline, nil, imp, now)
		c.metrics.RecordRebaseline(string(method))
		c.log.Info().Str("position", key.String()).Str("from", string(from)).Str("to", string(method)).
			Int64("quantity", state.Quantity).Int64("value", state.TotalValue).
			Msg("cambio de método de valoración")
	}
	return s, nil
}

// record agrega el impacto de una operación y su registro de auditoría.
func (s *bookSession) record(kind entity.ValuationEntryKind, moveID *string, imp inventory.Impact, now time.Time) *entity.ValuationEntry {
	s.changed = append(s.changed, imp.Changed()...)
	st := s.book.State
	e := &entity.ValuationEntry{
		ID:                uuid.New().String(),
		TenantID:          st.TenantID,
		ProductID:         st.ProductID,
		MoveID:            moveID,
		Kind:              kind,
		Method:            st.Method,
		QuantityDelta:     imp.QuantityDelta,
		ValueDelta:        imp.ValueDelta,
		Cogs:              imp.Cogs,
		Variance:          imp.Variance,
		ResultingQuantity: st.Quantity,
		ResultingValue:    st.TotalValue,
		ResultingAverage:  st.AverageCost,
		CreatedAt:         now,
	}
	s.entries = append(s.entries, e)
	return e
}

// save persiste capas, estado y auditoría.
func (s *bookSession) save(ctx context.Context, tx TxRepos) error {
	if len(s.changed) > 0 {
		if err := tx.Valuations.SaveLayers(ctx, s.changed); err != nil {
			return err
		}
	}
	if err := tx.Valuations.SaveState(ctx, s.book.State); err != nil {
		return err
	}
	for _, e := range s.entries {
		if err := tx.Valuations.AppendEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
