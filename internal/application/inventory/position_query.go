package inventory

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// PositionQuery consultas de solo lectura de saldos.
type PositionQuery struct {
	*core
}

// GetPosition saldo disponible y reservado de (tenant, producto).
func (q *PositionQuery) GetPosition(ctx context.Context, tenantID, productID string) (*entity.InventoryPosition, error) {
	if _, err := q.requireProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return q.repos.Positions.Get(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID})
}

// GetLocationBalance saldo del producto en una ubicación.
func (q *PositionQuery) GetLocationBalance(ctx context.Context, tenantID, productID, locationID string) (*entity.LocationBalance, error) {
	if _, err := q.requireProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	if err := q.requireLocation(ctx, tenantID, &locationID); err != nil {
		return nil, err
	}
	return q.repos.Positions.GetLocationBalance(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID}, locationID)
}

// ListLocationBalances saldos por ubicación del producto.
func (q *PositionQuery) ListLocationBalances(ctx context.Context, tenantID, productID string) ([]*entity.LocationBalance, error) {
	if _, err := q.requireProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return q.repos.Positions.ListLocationBalances(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID})
}

// ListPositions posiciones del tenant.
func (q *PositionQuery) ListPositions(ctx context.Context, tenantID string) ([]*entity.InventoryPosition, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	return q.repos.Positions.ListByTenant(ctx, tenantID)
}
