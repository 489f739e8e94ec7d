package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoveType tipo de movimiento del ledger.
type MoveType string

// Tipos de movimiento de inventario.
const (
	MoveTypeReceipt    MoveType = "receipt"    // entrada
	MoveTypeDelivery   MoveType = "delivery"   // salida
	MoveTypeTransfer   MoveType = "transfer"   // traslado entre ubicaciones
	MoveTypeAdjustment MoveType = "adjustment" // ajuste (+/-), requiere motivo
)

// IsValid indica si el tipo es uno de los soportados.
func (t MoveType) IsValid() bool {
	switch t {
	case MoveTypeReceipt, MoveTypeDelivery, MoveTypeTransfer, MoveTypeAdjustment:
		return true
	}
	return false
}

// StockMove es una fila inmutable del ledger. Nunca se actualiza ni se borra:
// las correcciones son nuevos movimientos de ajuste.
type StockMove struct {
	ID                    string
	TransactionID         string // agrupa las dos patas de un traslado
	TenantID              string
	ProductID             string
	Type                  MoveType
	Sequence              int64 // orden total por (tenant, producto)
	Quantity              int64 // positivo entrada/traslado-in, negativo salida/traslado-out
	UnitCost              *int64
	TotalCost             *int64 // = Quantity * UnitCost cuando ambos están presentes
	SourceLocationID      *string
	DestinationLocationID *string
	MoveDate              time.Time
	CurrencyCode          string
	Reason                string
	Reference             string
	CreatedAt             time.Time
	CreatedBy             string
}

// IsIncoming indica si el movimiento aumenta el saldo del producto.
func (m *StockMove) IsIncoming() bool {
	return m.Type != MoveTypeTransfer && m.Quantity > 0
}

// IsOutgoing indica si el movimiento disminuye el saldo del producto.
func (m *StockMove) IsOutgoing() bool {
	return m.Type != MoveTypeTransfer && m.Quantity < 0
}

// CostConsistent verifica total_cost = quantity × unit_cost cuando ambos existen.
// Se calcula en decimal para no desbordar int64.
func (m *StockMove) CostConsistent() bool {
	if m.UnitCost == nil || m.TotalCost == nil {
		return true
	}
	want := decimal.NewFromInt(m.Quantity).Mul(decimal.NewFromInt(*m.UnitCost))
	return want.Equal(decimal.NewFromInt(*m.TotalCost))
}

// IdempotencyRecord registra la clave del caller y el resultado original del posteo.
type IdempotencyRecord struct {
	TenantID      string
	Key           string
	TransactionID string
	Fingerprint   string // hash del contenido de la solicitud
	Cogs          int64
	Variance      int64
	CreatedAt     time.Time
}
