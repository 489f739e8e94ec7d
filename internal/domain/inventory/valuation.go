package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Book es el libro de costo de un producto: estado agregado y, en FIFO, sus capas
// ordenadas por secuencia de llegada. Las operaciones validan antes de mutar, de modo
// que un error deja el libro intacto.
type Book struct {
	State  *entity.ValuationState
	Layers []*entity.CostLayer
}

// Impact efecto de una operación sobre el libro.
type Impact struct {
	QuantityDelta int64
	ValueDelta    int64
	Cogs          int64 // costo de lo que sale (positivo)
	Variance      int64 // estándar: (costo real - estándar) × cantidad
	Created       []*entity.CostLayer
	Touched       []*entity.CostLayer
}

// Changed devuelve las capas a persistir (tocadas + creadas).
func (i Impact) Changed() []*entity.CostLayer {
	out := make([]*entity.CostLayer, 0, len(i.Touched)+len(i.Created))
	out = append(out, i.Touched...)
	return append(out, i.Created...)
}

// LayerQuantity suma de cantidades pendientes en capas.
func (b *Book) LayerQuantity() int64 {
	var total int64
	for _, l := range b.Layers {
		total += l.RemainingQuantity
	}
	return total
}

// CurrentUnitCost costo unitario vigente para entradas sin costo (ajustes positivos).
func (b *Book) CurrentUnitCost() int64 {
	s := b.State
	switch s.Method {
	case entity.ValuationStandard:
		if s.StandardCost != nil {
			return *s.StandardCost
		}
	case entity.ValuationFIFO:
		if s.Quantity > 0 {
			return RoundHalfEven(decimal.NewFromInt(s.TotalValue), decimal.NewFromInt(s.Quantity))
		}
		if n := len(b.Layers); n > 0 {
			return b.Layers[n-1].UnitCost
		}
	}
	return s.AverageCost
}

// Receive registra una entrada de qty unidades a unitCost.
func (b *Book) Receive(qty, unitCost int64, moveID string, seq int64, now time.Time) (Impact, error) {
	if qty <= 0 || unitCost < 0 {
		return Impact{}, domain.NewError(domain.ErrInvalidInput, "entrada de valoración inválida").
			With("quantity", qty).With("unit_cost", unitCost)
	}
	s := b.State
	value, err := MulCost(qty, unitCost)
	if err != nil {
		return Impact{}, err
	}
	newQty, err := AddQuantity(s.Quantity, qty)
	if err != nil {
		return Impact{}, err
	}
	imp := Impact{QuantityDelta: qty}

	switch s.Method {
	case entity.ValuationFIFO:
		newValue, err := AddValue(s.TotalValue, value)
		if err != nil {
			return Impact{}, err
		}
		layer := &entity.CostLayer{
			ID:                uuid.New().String(),
			TenantID:          s.TenantID,
			ProductID:         s.ProductID,
			MoveID:            moveID,
			Sequence:          seq,
			OriginalQuantity:  qty,
			RemainingQuantity: qty,
			UnitCost:          unitCost,
			CreatedAt:         now,
		}
		b.Layers = append(b.Layers, layer)
		imp.Created = []*entity.CostLayer{layer}
		imp.ValueDelta = value
		s.Quantity = newQty
		s.TotalValue = newValue
		s.AverageCost = RoundHalfEven(decimal.NewFromInt(s.TotalValue), decimal.NewFromInt(s.Quantity))

	case entity.ValuationAVCO:
		avg := CostCalculator(s.Quantity, s.AverageCost, qty, unitCost)
		newValue, err := MulCost(newQty, avg)
		if err != nil {
			return Impact{}, err
		}
		imp.ValueDelta = newValue - s.TotalValue
		s.Quantity = newQty
		s.AverageCost = avg
		s.TotalValue = newValue

	case entity.ValuationStandard:
		if s.StandardCost == nil {
			return Impact{}, domain.NewError(domain.ErrStandardCostMissing, "entrada bajo costo estándar").
				With("product_id", s.ProductID)
		}
		std := *s.StandardCost
		stdValue, err := MulCost(qty, std)
		if err != nil {
			return Impact{}, err
		}
		newValue, err := AddValue(s.TotalValue, stdValue)
		if err != nil {
			return Impact{}, err
		}
		imp.ValueDelta = stdValue
		imp.Variance = value - stdValue
		s.Quantity = newQty
		s.TotalValue = newValue
		s.AverageCost = std

	default:
		return Impact{}, domain.NewError(domain.ErrInvalidInput, "método de valoración desconocido").
			With("method", s.Method)
	}
	s.UpdatedAt = now
	return imp, nil
}

// Issue registra una salida de qty unidades y calcula el COGS.
// Si el libro no cubre la cantidad devuelve ErrValuationLayerExhausted: el agregado
// y la valoración divergieron.
func (b *Book) Issue(qty int64, now time.Time) (Impact, error) {
	if qty <= 0 {
		return Impact{}, domain.NewError(domain.ErrInvalidInput, "salida de valoración inválida").
			With("quantity", qty)
	}
	s := b.State
	imp := Impact{QuantityDelta: -qty}

	switch s.Method {
	case entity.ValuationFIFO:
		cogs, touched, err := ConsumeLayers(b.Layers, qty)
		if err != nil {
			return Impact{}, err
		}
		for _, t := range touched {
			for _, l := range b.Layers {
				if l.ID == t.ID {
					l.RemainingQuantity = t.RemainingQuantity
				}
			}
		}
		b.Layers = pruneLayers(b.Layers)
		imp.Cogs = cogs
		imp.Touched = touched
		imp.ValueDelta = -cogs
		s.Quantity -= qty
		s.TotalValue -= cogs
		if s.Quantity > 0 {
			s.AverageCost = RoundHalfEven(decimal.NewFromInt(s.TotalValue), decimal.NewFromInt(s.Quantity))
		}

	case entity.ValuationAVCO, entity.ValuationStandard:
		if s.Quantity < qty {
			return Impact{}, domain.NewError(domain.ErrValuationLayerExhausted, "saldo valorado menor que la salida").
				With("requested", qty).With("valued_quantity", s.Quantity).With("method", s.Method)
		}
		unit := s.AverageCost
		if s.Method == entity.ValuationStandard {
			if s.StandardCost == nil {
				return Impact{}, domain.NewError(domain.ErrStandardCostMissing, "salida bajo costo estándar").
					With("product_id", s.ProductID)
			}
			unit = *s.StandardCost
		}
		cogs, err := MulCost(qty, unit)
		if err != nil {
			return Impact{}, err
		}
		remaining, err := MulCost(s.Quantity-qty, unit)
		if err != nil {
			return Impact{}, err
		}
		imp.Cogs = cogs
		imp.ValueDelta = remaining - s.TotalValue
		s.Quantity -= qty
		s.TotalValue = remaining

	default:
		return Impact{}, domain.NewError(domain.ErrInvalidInput, "método de valoración desconocido").
			With("method", s.Method)
	}
	s.UpdatedAt = now
	return imp, nil
}

// Rebaseline cambia el método colapsando el saldo en un equivalente AVCO
// (cantidad, valor/cantidad). No interpola: es una operación discreta.
// Al pasar a estándar sin costo configurado, el estándar toma el promedio.
func (b *Book) Rebaseline(method entity.ValuationMethod, moveID string, seq int64, now time.Time) (Impact, error) {
	if !method.IsValid() {
		return Impact{}, domain.NewError(domain.ErrInvalidInput, "método de valoración desconocido").
			With("method", method)
	}
	s := b.State
	avg := s.AverageCost
	if s.Quantity > 0 {
		avg = RoundHalfEven(decimal.NewFromInt(s.TotalValue), decimal.NewFromInt(s.Quantity))
	}
	newValue, err := MulCost(s.Quantity, avg)
	if err != nil {
		return Impact{}, err
	}
	imp := Impact{}
	for _, l := range b.Layers {
		if l.RemainingQuantity > 0 {
			l.RemainingQuantity = 0
			imp.Touched = append(imp.Touched, l)
		}
	}
	b.Layers = nil

	switch method {
	case entity.ValuationFIFO:
		if s.Quantity > 0 {
			layer := &entity.CostLayer{
				ID:                uuid.New().String(),
				TenantID:          s.TenantID,
				ProductID:         s.ProductID,
				MoveID:            moveID,
				Sequence:          seq,
				OriginalQuantity:  s.Quantity,
				RemainingQuantity: s.Quantity,
				UnitCost:          avg,
				CreatedAt:         now,
			}
			b.Layers = []*entity.CostLayer{layer}
			imp.Created = []*entity.CostLayer{layer}
		}
	case entity.ValuationStandard:
		if s.StandardCost == nil {
			std := avg
			s.StandardCost = &std
		}
		newValue, err = MulCost(s.Quantity, *s.StandardCost)
		if err != nil {
			return Impact{}, err
		}
		avg = *s.StandardCost
	}

	imp.ValueDelta = newValue - s.TotalValue
	s.Method = method
	s.AverageCost = avg
	s.TotalValue = newValue
	s.UpdatedAt = now
	return imp, nil
}

// SetStandardCost fija el costo estándar y revalúa el saldo a ese costo.
func (b *Book) SetStandardCost(cost int64, now time.Time) (Impact, error) {
	if cost <= 0 {
		return Impact{}, domain.NewError(domain.ErrInvalidInput, "el costo estándar debe ser positivo").
			With("standard_cost", cost)
	}
	s := b.State
	c := cost
	s.StandardCost = &c
	if s.Method != entity.ValuationStandard {
		s.UpdatedAt = now
		return Impact{}, nil
	}
	newValue, err := MulCost(s.Quantity, cost)
	if err != nil {
		return Impact{}, err
	}
	imp := Impact{ValueDelta: newValue - s.TotalValue}
	s.TotalValue = newValue
	s.AverageCost = cost
	s.UpdatedAt = now
	return imp, nil
}

func pruneLayers(layers []*entity.CostLayer) []*entity.CostLayer {
	out := layers[:0]
	for _, l := range layers {
		if l.RemainingQuantity > 0 {
			out = append(out, l)
		}
	}
	return out
}
