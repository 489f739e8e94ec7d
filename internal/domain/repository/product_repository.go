package repository

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// ProductRepository puerto de lectura del maestro de productos (colaborador externo).
// GetByID no filtra por tenant: el núcleo compara el dueño para detectar referencias cruzadas.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}

// LocationRepository puerto de lectura del maestro de bodegas/ubicaciones.
type LocationRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Location, error)
}

// TenantRepository puerto de lectura del registro de tenants.
type TenantRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Tenant, error)
	ListActive(ctx context.Context) ([]*entity.Tenant, error)
}
