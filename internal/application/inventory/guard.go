package inventory

import (
	"context"
	"errors"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// requireProduct valida que el producto exista, esté activo y pertenezca al tenant.
// Una referencia a otro tenant es ErrTenantMismatch, nunca NotFound.
func (c *core) requireProduct(ctx context.Context, tenantID, productID string) (*entity.Product, error) {
	if tenantID == "" || productID == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "tenant y producto son obligatorios")
	}
	p, err := c.repos.Products.GetByID(ctx, productID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if p == nil {
		return nil, domain.NewError(domain.ErrNotFound, "producto no encontrado").With("product_id", productID)
	}
	if p.TenantID != tenantID {
		return nil, domain.NewError(domain.ErrTenantMismatch, "el producto pertenece a otro tenant").
			With("tenant_id", tenantID).With("product_id", productID)
	}
	if !p.IsActive() {
		return nil, domain.NewError(domain.ErrNotFound, "producto inactivo o eliminado").With("product_id", productID)
	}
	return p, nil
}

// requireLocation valida una ubicación opcional (nil = sin ubicación).
func (c *core) requireLocation(ctx context.Context, tenantID string, locationID *string) error {
	if locationID == nil {
		return nil
	}
	if *locationID == "" {
		return domain.NewError(domain.ErrInvalidInput, "ubicación vacía")
	}
	l, err := c.repos.Locations.GetByID(ctx, *locationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if l == nil {
		return domain.NewError(domain.ErrNotFound, "ubicación no encontrada").With("location_id", *locationID)
	}
	if l.TenantID != tenantID {
		return domain.NewError(domain.ErrTenantMismatch, "la ubicación pertenece a otro tenant").
			With("tenant_id", tenantID).With("location_id", *locationID)
	}
	if !l.IsActive() {
		return domain.NewError(domain.ErrNotFound, "ubicación inactiva o eliminada").With("location_id", *locationID)
	}
	return nil
}

// checkOwner compara el tenant de una entidad leída sin filtro con el del caller.
func checkOwner(tenantID, ownerID, entityName, id string) error {
	if ownerID != tenantID {
		return domain.NewError(domain.ErrTenantMismatch, entityName+" de otro tenant").
			With("tenant_id", tenantID).With("id", id)
	}
	return nil
}
