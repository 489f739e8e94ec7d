package repository

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// PositionRepository puerto de saldos por (tenant, producto) con control de versión optimista.
type PositionRepository interface {
	// Get devuelve la posición; si no existe, una posición vacía con Version 0.
	Get(ctx context.Context, key entity.PositionKey) (*entity.InventoryPosition, error)
	// Save persiste si la versión almacenada es expectedVersion (0 = insertar) y deja
	// pos.Version = expectedVersion + 1. Si no coincide devuelve domain.ErrConcurrentModification.
	Save(ctx context.Context, pos *entity.InventoryPosition, expectedVersion int64) error
	ListByTenant(ctx context.Context, tenantID string) ([]*entity.InventoryPosition, error)

	// GetLocationBalance devuelve saldo 0 si la ubicación no tiene registro.
	GetLocationBalance(ctx context.Context, key entity.PositionKey, locationID string) (*entity.LocationBalance, error)
	SaveLocationBalance(ctx context.Context, balance *entity.LocationBalance) error
	ListLocationBalances(ctx context.Context, key entity.PositionKey) ([]*entity.LocationBalance, error)
}

// ReservationRepository puerto de reservas.
type ReservationRepository interface {
	// GetByID no filtra por tenant (para detectar referencias cruzadas). nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	Create(ctx context.Context, r *entity.Reservation) error
	Update(ctx context.Context, r *entity.Reservation) error
	ListActive(ctx context.Context, key entity.PositionKey) ([]*entity.Reservation, error)
}
