package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo lectura del maestro de productos. Upsert existe para cargas y tests:
// el núcleo nunca escribe productos.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// GetByID no filtra por tenant. nil, nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `SELECT id, tenant_id, category_id, sku, name, base_unit, status, created_at, updated_at, deleted_at
		FROM products WHERE id = $1`
	var p entity.Product
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.TenantID, &p.CategoryID, &p.SKU, &p.Name, &p.BaseUnit, &p.Status,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// Upsert inserta o reemplaza el producto.
func (r *ProductRepo) Upsert(ctx context.Context, p *entity.Product) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = entity.StatusActive
	}
	query := `INSERT INTO products (id, tenant_id, category_id, sku, name, base_unit, status, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET category_id = EXCLUDED.category_id, sku = EXCLUDED.sku, name = EXCLUDED.name,
			base_unit = EXCLUDED.base_unit, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`
	_, err := r.q.Exec(ctx, query, p.ID, p.TenantID, p.CategoryID, p.SKU, p.Name, p.BaseUnit, p.Status,
		p.CreatedAt, p.UpdatedAt, p.DeletedAt)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}
