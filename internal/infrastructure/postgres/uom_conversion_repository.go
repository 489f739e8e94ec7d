package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.UomConversionRepository = (*UomConversionRepo)(nil)

// UomConversionRepo aristas de conversión por producto. El factor es NUMERIC y se lee
// como decimal.Decimal (codec registrado en el pool).
type UomConversionRepo struct {
	q Querier
}

// NewUomConversionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewUomConversionRepository(q Querier) *UomConversionRepo {
	return &UomConversionRepo{q: q}
}

// GetByID incluye aristas eliminadas. nil, nil si no existe.
func (r *UomConversionRepo) GetByID(ctx context.Context, id string) (*entity.UomConversion, error) {
	query := `SELECT id, tenant_id, product_id, from_unit, to_unit, factor, active, created_at, updated_at, deleted_at
		FROM uom_conversions WHERE id = $1`
	var c entity.UomConversion
	err := r.q.QueryRow(ctx, query, id).Scan(&c.ID, &c.TenantID, &c.ProductID, &c.FromUnit, &c.ToUnit, &c.Factor,
		&c.Active, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversion: %w", err)
	}
	return &c, nil
}

// ListActive aristas activas y no eliminadas, ordenadas por (from, to).
func (r *UomConversionRepo) ListActive(ctx context.Context, key entity.PositionKey) ([]*entity.UomConversion, error) {
	query := `SELECT id, tenant_id, product_id, from_unit, to_unit, factor, active, created_at, updated_at, deleted_at
		FROM uom_conversions
		WHERE tenant_id = $1 AND product_id = $2 AND active AND deleted_at IS NULL
		ORDER BY from_unit, to_unit`
	rows, err := r.q.Query(ctx, query, key.TenantID, key.ProductID)
	if err != nil {
		return nil, fmt.Errorf("list conversions: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.UomConversion, 0)
	for rows.Next() {
		var c entity.UomConversion
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ProductID, &c.FromUnit, &c.ToUnit, &c.Factor, &c.Active,
			&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

// Create devuelve domain.ErrDuplicate si ya existe la arista no eliminada.
func (r *UomConversionRepo) Create(ctx context.Context, c *entity.UomConversion) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `INSERT INTO uom_conversions
		(id, tenant_id, product_id, from_unit, to_unit, factor, active, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query, c.ID, c.TenantID, c.ProductID, c.FromUnit, c.ToUnit, c.Factor, c.Active,
		c.CreatedAt, c.UpdatedAt, c.DeletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create conversion: %w", err)
	}
	return nil
}

// Deactivate desactiva y marca como eliminada la arista.
func (r *UomConversionRepo) Deactivate(ctx context.Context, tenantID, id string) error {
	query := `UPDATE uom_conversions SET active = FALSE, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("deactivate conversion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
