package inventory

import (
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// SafetyStockMode define cómo se usa el stock de seguridad de la regla.
type SafetyStockMode string

const (
	// SafetyStockEmbedded: el stock de seguridad ya está incluido en el punto de reorden.
	SafetyStockEmbedded SafetyStockMode = "embedded"
	// SafetyStockAdditive: se suma a la cantidad sugerida.
	SafetyStockAdditive SafetyStockMode = "additive"
)

// SuggestQuantity calcula la cantidad a pedir para un stock efectivo dado.
// Sin sugerencia si effective >= reorder_point. Si no:
// max(0, max_quantity - effective) (+ safety_stock en modo aditivo), nunca por debajo
// de min_quantity.
func SuggestQuantity(rule *entity.ReorderRule, effective int64, mode SafetyStockMode) (int64, bool) {
	if effective >= rule.ReorderPoint {
		return 0, false
	}
	qty := rule.MaxQuantity - effective
	if qty < 0 {
		qty = 0
	}
	if mode == SafetyStockAdditive {
		qty += rule.SafetyStock
	}
	if qty < rule.MinQuantity {
		qty = rule.MinQuantity
	}
	if qty == 0 {
		return 0, false
	}
	return qty, true
}

// ValidateReorderRule verifica las restricciones estructurales de la regla.
func ValidateReorderRule(r *entity.ReorderRule) error {
	switch {
	case r.TenantID == "" || r.ProductID == "":
		return domain.NewError(domain.ErrInvalidInput, "tenant y producto son obligatorios")
	case r.ReorderPoint < 0 || r.MinQuantity < 0:
		return domain.NewError(domain.ErrInvalidInput, "punto de reorden y mínimo no pueden ser negativos").
			With("reorder_point", r.ReorderPoint).With("min_quantity", r.MinQuantity)
	case r.MaxQuantity < r.MinQuantity:
		return domain.NewError(domain.ErrInvalidInput, "max_quantity debe ser >= min_quantity").
			With("min_quantity", r.MinQuantity).With("max_quantity", r.MaxQuantity)
	case r.LeadTimeDays <= 0:
		return domain.NewError(domain.ErrInvalidInput, "lead_time_days debe ser > 0").
			With("lead_time_days", r.LeadTimeDays)
	case r.SafetyStock < 0:
		return domain.NewError(domain.ErrInvalidInput, "safety_stock no puede ser negativo").
			With("safety_stock", r.SafetyStock)
	}
	return nil
}
