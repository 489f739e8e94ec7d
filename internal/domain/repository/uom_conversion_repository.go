package repository

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// UomConversionRepository puerto de aristas de conversión por producto.
type UomConversionRepository interface {
	// GetByID incluye aristas eliminadas; nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.UomConversion, error)
	// ListActive devuelve solo aristas activas y no eliminadas del (tenant, producto).
	ListActive(ctx context.Context, key entity.PositionKey) ([]*entity.UomConversion, error)
	// Create devuelve domain.ErrDuplicate si ya existe (tenant, producto, from, to).
	Create(ctx context.Context, c *entity.UomConversion) error
	Deactivate(ctx context.Context, tenantID, id string) error
}

// ReorderRuleRepository puerto de reglas de reposición.
type ReorderRuleRepository interface {
	GetByID(ctx context.Context, id string) (*entity.ReorderRule, error)
	// FindActive devuelve la regla activa para (tenant, producto, bodega); nil, nil si no hay.
	FindActive(ctx context.Context, tenantID, productID string, warehouseID *string) (*entity.ReorderRule, error)
	ListActive(ctx context.Context, tenantID string) ([]*entity.ReorderRule, error)
	// Create devuelve domain.ErrDuplicate si ya hay una activa para la misma clave.
	Create(ctx context.Context, rule *entity.ReorderRule) error
	Update(ctx context.Context, rule *entity.ReorderRule) error
	SoftDelete(ctx context.Context, tenantID, id string) error
}
