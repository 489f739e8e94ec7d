package entity

import (
	"strings"
	"time"
)

// ValuationMethod método de costeo de un producto.
type ValuationMethod string

const (
	ValuationFIFO     ValuationMethod = "fifo"
	ValuationAVCO     ValuationMethod = "avco" // promedio ponderado
	ValuationStandard ValuationMethod = "standard"
)

// IsValid indica si el método es soportado.
func (m ValuationMethod) IsValid() bool {
	switch m {
	case ValuationFIFO, ValuationAVCO, ValuationStandard:
		return true
	}
	return false
}

// ParseValuationMethod normaliza el texto (sin distinguir mayúsculas).
func ParseValuationMethod(s string) (ValuationMethod, bool) {
	m := ValuationMethod(strings.ToLower(strings.TrimSpace(s)))
	return m, m.IsValid()
}

// ValuationScope nivel al que aplica una configuración de valoración.
// Precedencia: producto > categoría > tenant.
type ValuationScope string

const (
	ScopeTenant   ValuationScope = "tenant"
	ScopeCategory ValuationScope = "category"
	ScopeProduct  ValuationScope = "product"
)

// IsValid indica si el alcance es soportado.
func (s ValuationScope) IsValid() bool {
	return s == ScopeTenant || s == ScopeCategory || s == ScopeProduct
}

// ValuationSetting configuración activa por (tenant, alcance, id de alcance).
type ValuationSetting struct {
	ID        string
	TenantID  string
	Scope     ValuationScope
	ScopeID   *string // nil solo para alcance tenant
	Method    ValuationMethod
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsActive aplica explícitamente el predicado "no eliminado".
func (s *ValuationSetting) IsActive() bool {
	return s.DeletedAt == nil
}

// ValuationState estado de costo por (tenant, producto). Quantity sigue al físico
// (disponible + reservado) bajo cualquier método.
type ValuationState struct {
	TenantID     string
	ProductID    string
	Method       ValuationMethod
	Quantity     int64
	TotalValue   int64 // unidades menores de la moneda
	AverageCost  int64 // costo promedio vigente (AVCO) o informativo (FIFO)
	StandardCost *int64
	CurrencyCode string
	UpdatedAt    time.Time
}

// Key devuelve la posición valorada.
func (s *ValuationState) Key() PositionKey {
	return PositionKey{TenantID: s.TenantID, ProductID: s.ProductID}
}

// CostLayer capa FIFO: cantidad pendiente de una entrada y su costo unitario.
// Sequence es la secuencia del movimiento que la creó (orden de llegada).
type CostLayer struct {
	ID                string
	TenantID          string
	ProductID         string
	MoveID            string
	Sequence          int64
	OriginalQuantity  int64
	RemainingQuantity int64
	UnitCost          int64
	CreatedAt         time.Time
}

// ValuationEntryKind origen de un registro de valoración.
type ValuationEntryKind string

const (
	EntryMove         ValuationEntryKind = "move"
	EntryRebaseline   ValuationEntryKind = "rebaseline"
	EntryStandardCost ValuationEntryKind = "standard_cost"
)

// ValuationEntry registro de auditoría de cada actualización de valoración.
type ValuationEntry struct {
	ID                string
	TenantID          string
	ProductID         string
	MoveID            *string
	Kind              ValuationEntryKind
	Method            ValuationMethod
	QuantityDelta     int64
	ValueDelta        int64
	Cogs              int64
	Variance          int64
	ResultingQuantity int64
	ResultingValue    int64
	ResultingAverage  int64
	CreatedAt         time.Time
}
