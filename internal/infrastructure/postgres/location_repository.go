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

var _ repository.LocationRepository = (*LocationRepo)(nil)

// LocationRepo lectura del maestro de bodegas/ubicaciones.
type LocationRepo struct {
	q Querier
}

// NewLocationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLocationRepository(q Querier) *LocationRepo {
	return &LocationRepo{q: q}
}

// GetByID nil, nil si no existe.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*entity.Location, error) {
	query := `SELECT id, tenant_id, warehouse_id, name, status, created_at, updated_at, deleted_at
		FROM locations WHERE id = $1`
	var l entity.Location
	err := r.q.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.TenantID, &l.WarehouseID, &l.Name, &l.Status, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}

// Upsert inserta o reemplaza la ubicación.
func (r *LocationRepo) Upsert(ctx context.Context, l *entity.Location) error {
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = entity.StatusActive
	}
	query := `INSERT INTO locations (id, tenant_id, warehouse_id, name, status, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET warehouse_id = EXCLUDED.warehouse_id, name = EXCLUDED.name,
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at, deleted_at = EXCLUDED.deleted_at`
	_, err := r.q.Exec(ctx, query, l.ID, l.TenantID, l.WarehouseID, l.Name, l.Status, l.CreatedAt, l.UpdatedAt, l.DeletedAt)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}
