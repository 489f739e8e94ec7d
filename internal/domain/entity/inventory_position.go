package entity

import "time"

// PositionKey identifica la unidad de exclusión mutua del núcleo: (tenant, producto).
type PositionKey struct {
	TenantID  string
	ProductID string
}

// String devuelve "tenant/producto" (logs y métricas).
func (k PositionKey) String() string {
	return k.TenantID + "/" + k.ProductID
}

// InventoryPosition saldo actual por (tenant, producto), mantenido incrementalmente.
// Available excluye lo reservado; el físico es Available + Reserved.
type InventoryPosition struct {
	TenantID          string
	ProductID         string
	AvailableQuantity int64
	ReservedQuantity  int64
	LastSequence      int64 // secuencia del último movimiento posteado
	Version           int64 // 0 = aún no persistida
	UpdatedAt         time.Time
}

// NewInventoryPosition crea una posición vacía (versión 0).
func NewInventoryPosition(key PositionKey) *InventoryPosition {
	return &InventoryPosition{TenantID: key.TenantID, ProductID: key.ProductID}
}

// Key devuelve la clave de la posición.
func (p *InventoryPosition) Key() PositionKey {
	return PositionKey{TenantID: p.TenantID, ProductID: p.ProductID}
}

// OnHand cantidad física (disponible + reservada).
func (p *InventoryPosition) OnHand() int64 {
	return p.AvailableQuantity + p.ReservedQuantity
}

// LocationBalance saldo por (tenant, producto, ubicación) para movimientos que llevan ubicación.
type LocationBalance struct {
	TenantID   string
	ProductID  string
	LocationID string
	Quantity   int64
	UpdatedAt  time.Time
}
