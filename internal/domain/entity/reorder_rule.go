package entity

import "time"

// ReorderRule regla de reposición por (tenant, producto, bodega opcional).
type ReorderRule struct {
	ID           string
	TenantID     string
	ProductID    string
	WarehouseID  *string
	ReorderPoint int64
	MinQuantity  int64
	MaxQuantity  int64 // >= MinQuantity
	LeadTimeDays int32 // > 0
	SafetyStock  int64 // >= 0
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// IsActive aplica explícitamente el predicado "no eliminado".
func (r *ReorderRule) IsActive() bool {
	return r.DeletedAt == nil
}

// ReplenishmentSuggestion sugerencia de reposición derivada solo de lecturas.
type ReplenishmentSuggestion struct {
	RuleID            string
	TenantID          string
	ProductID         string
	WarehouseID       *string
	AvailableQuantity int64
	ReservedQuantity  int64
	IncomingQuantity  int64
	EffectiveStock    int64
	ReorderPoint      int64
	SuggestedQuantity int64
	LeadTimeDays      int32
	ExpectedBy        time.Time // EvaluatedAt + LeadTimeDays
	Priority          int       // 1 = más urgente (solo en barridos)
	EvaluatedAt       time.Time
}

// Deficit distancia bajo el punto de reorden.
func (s *ReplenishmentSuggestion) Deficit() int64 {
	return s.ReorderPoint - s.EffectiveStock
}
