package entity

import "time"

// Estados de entidades maestras (producto, tenant, ubicación).
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Product es la identidad de producto que el núcleo consume del maestro de productos.
// El núcleo solo lee: tenant dueño, categoría (para resolver valoración) y unidad base.
type Product struct {
	ID         string
	TenantID   string
	CategoryID *string // nil si el producto no tiene categoría
	SKU        string
	Name       string
	BaseUnit   string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// IsActive aplica explícitamente el predicado "no eliminado" y el estado.
func (p *Product) IsActive() bool {
	return p.DeletedAt == nil && p.Status == StatusActive
}

// Tenant es la identidad que el núcleo consume del registro de tenants.
type Tenant struct {
	ID        string
	Name      string
	Status    string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// IsActive indica si el tenant puede operar.
func (t *Tenant) IsActive() bool {
	return t.DeletedAt == nil && t.Status == StatusActive
}
