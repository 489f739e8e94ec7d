package inventory

import (
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// ConsumeLayers planifica el consumo FIFO de qty unidades sobre layers (ordenadas por
// secuencia). Consume capas completas mientras alcancen y parte la última, dejando el
// remanente intacto. No muta layers: devuelve copias de las capas tocadas con la
// cantidad pendiente resultante y el COGS = Σ(consumido × costo de la capa).
func ConsumeLayers(layers []*entity.CostLayer, qty int64) (int64, []*entity.CostLayer, error) {
	var total int64
	for _, l := range layers {
		total += l.RemainingQuantity
	}
	if total < qty {
		return 0, nil, domain.NewError(domain.ErrValuationLayerExhausted, "la demanda supera las capas FIFO").
			With("requested", qty).With("layered_quantity", total)
	}

	var cogs int64
	remaining := qty
	touched := make([]*entity.CostLayer, 0, 2)
	for _, l := range layers {
		if remaining == 0 {
			break
		}
		if l.RemainingQuantity == 0 {
			continue
		}
		take := l.RemainingQuantity
		if take > remaining {
			take = remaining
		}
		cost, err := MulCost(take, l.UnitCost)
		if err != nil {
			return 0, nil, err
		}
		cogs += cost
		remaining -= take

		c := *l
		c.RemainingQuantity -= take
		touched = append(touched, &c)
	}
	return cogs, touched, nil
}
