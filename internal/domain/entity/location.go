package entity

import "time"

// Location representa una ubicación (bodega, zona o bin) del maestro de bodegas.
// Para el núcleo es un identificador opaco usado para enrutar movimientos.
type Location struct {
	ID          string
	TenantID    string
	WarehouseID string
	Name        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// IsActive aplica explícitamente el predicado "no eliminado".
func (l *Location) IsActive() bool {
	return l.DeletedAt == nil && l.Status == StatusActive
}
