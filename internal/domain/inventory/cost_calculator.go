package inventory

import (
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// CostCalculator implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
// redondeado a la unidad menor de la moneda con redondeo bancario (mitad al par).
func CostCalculator(stockActual, costoActual, cantEntrada, costoEntrada int64) int64 {
	sum := decimal.NewFromInt(stockActual).Add(decimal.NewFromInt(cantEntrada))
	if sum.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	num := decimal.NewFromInt(stockActual).Mul(decimal.NewFromInt(costoActual)).
		Add(decimal.NewFromInt(cantEntrada).Mul(decimal.NewFromInt(costoEntrada)))
	return RoundHalfEven(num, sum)
}

// RoundHalfEven divide num/den y redondea a entero con redondeo bancario.
// Usa cociente y resto exactos para no depender de la precisión de Div.
func RoundHalfEven(num, den decimal.Decimal) int64 {
	q, r := num.QuoRem(den, 0)
	twice := r.Abs().Mul(decimal.NewFromInt(2))
	cmp := twice.Cmp(den.Abs())
	if cmp > 0 || (cmp == 0 && q.IntPart()%2 != 0) {
		if num.Sign()*den.Sign() < 0 {
			q = q.Sub(decimal.NewFromInt(1))
		} else {
			q = q.Add(decimal.NewFromInt(1))
		}
	}
	return q.IntPart()
}

// MulCost multiplica cantidad × costo unitario detectando desbordamiento de int64.
func MulCost(qty, unitCost int64) (int64, error) {
	if qty == 0 || unitCost == 0 {
		return 0, nil
	}
	r := qty * unitCost
	if r/unitCost != qty || (qty == -1 && unitCost == minInt64) || (unitCost == -1 && qty == minInt64) {
		return 0, domain.NewError(domain.ErrCostInconsistency, "importe fuera de rango").
			With("quantity", qty).With("unit_cost", unitCost)
	}
	return r, nil
}

// AddQuantity suma dos cantidades detectando desbordamiento de int64.
func AddQuantity(a, b int64) (int64, error) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, domain.NewError(domain.ErrInvalidInput, "cantidad fuera de rango").
			With("current", a).With("delta", b)
	}
	return r, nil
}

// AddValue suma dos importes detectando desbordamiento de int64.
func AddValue(a, b int64) (int64, error) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, domain.NewError(domain.ErrCostInconsistency, "importe fuera de rango").
			With("current", a).With("delta", b)
	}
	return r, nil
}

const minInt64 = -1 << 63
