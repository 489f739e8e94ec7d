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

var _ repository.TenantRepository = (*TenantRepo)(nil)

// TenantRepo lectura del registro de tenants.
type TenantRepo struct {
	q Querier
}

// NewTenantRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTenantRepository(q Querier) *TenantRepo {
	return &TenantRepo{q: q}
}

// GetByID nil, nil si no existe.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*entity.Tenant, error) {
	query := `SELECT id, name, status, created_at, deleted_at FROM tenants WHERE id = $1`
	var t entity.Tenant
	err := r.q.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt, &t.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// ListActive tenants activos y no eliminados, ordenados por id.
func (r *TenantRepo) ListActive(ctx context.Context) ([]*entity.Tenant, error) {
	query := `SELECT id, name, status, created_at, deleted_at FROM tenants
		WHERE deleted_at IS NULL AND status = 'active' ORDER BY id`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.Tenant, 0)
	for rows.Next() {
		var t entity.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt, &t.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}

// Upsert inserta o reemplaza el tenant.
func (r *TenantRepo) Upsert(ctx context.Context, t *entity.Tenant) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = entity.StatusActive
	}
	query := `INSERT INTO tenants (id, name, status, created_at, deleted_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status, deleted_at = EXCLUDED.deleted_at`
	if _, err := r.q.Exec(ctx, query, t.ID, t.Name, t.Status, t.CreatedAt, t.DeletedAt); err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}
