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

var _ repository.ReorderRuleRepository = (*ReorderRuleRepo)(nil)

// ReorderRuleRepo reglas de reposición.
type ReorderRuleRepo struct {
	q Querier
}

// NewReorderRuleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReorderRuleRepository(q Querier) *ReorderRuleRepo {
	return &ReorderRuleRepo{q: q}
}

const ruleColumns = `id, tenant_id, product_id, warehouse_id, reorder_point, min_quantity, max_quantity,
	lead_time_days, safety_stock, created_at, updated_at, deleted_at`

func scanRule(row pgx.Row) (*entity.ReorderRule, error) {
	var rule entity.ReorderRule
	if err := row.Scan(&rule.ID, &rule.TenantID, &rule.ProductID, &rule.WarehouseID, &rule.ReorderPoint,
		&rule.MinQuantity, &rule.MaxQuantity, &rule.LeadTimeDays, &rule.SafetyStock,
		&rule.CreatedAt, &rule.UpdatedAt, &rule.DeletedAt); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ReorderRuleRepo) queryOne(ctx context.Context, op, query string, args ...any) (*entity.ReorderRule, error) {
	rule, err := scanRule(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rule, nil
}

// GetByID incluye reglas eliminadas. nil, nil si no existe.
func (r *ReorderRuleRepo) GetByID(ctx context.Context, id string) (*entity.ReorderRule, error) {
	return r.queryOne(ctx, "get reorder rule", `SELECT `+ruleColumns+` FROM reorder_rules WHERE id = $1`, id)
}

// FindActive regla vigente de (tenant, producto, bodega); warehouseID nil = regla general.
func (r *ReorderRuleRepo) FindActive(ctx context.Context, tenantID, productID string, warehouseID *string) (*entity.ReorderRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM reorder_rules
		WHERE tenant_id = $1 AND product_id = $2 AND warehouse_id IS NOT DISTINCT FROM $3 AND deleted_at IS NULL`
	return r.queryOne(ctx, "find reorder rule", query, tenantID, productID, warehouseID)
}

// ListActive reglas vigentes del tenant ordenadas por producto.
func (r *ReorderRuleRepo) ListActive(ctx context.Context, tenantID string) ([]*entity.ReorderRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM reorder_rules
		WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY product_id, id`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list reorder rules: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.ReorderRule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reorder rule: %w", err)
		}
		list = append(list, rule)
	}
	return list, rows.Err()
}

// Create devuelve domain.ErrDuplicate si ya hay una activa para la clave.
func (r *ReorderRuleRepo) Create(ctx context.Context, rule *entity.ReorderRule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	query := `INSERT INTO reorder_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query, rule.ID, rule.TenantID, rule.ProductID, rule.WarehouseID, rule.ReorderPoint,
		rule.MinQuantity, rule.MaxQuantity, rule.LeadTimeDays, rule.SafetyStock,
		rule.CreatedAt, rule.UpdatedAt, rule.DeletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create reorder rule: %w", err)
	}
	return nil
}

// Update reemplaza los parámetros de una regla vigente.
func (r *ReorderRuleRepo) Update(ctx context.Context, rule *entity.ReorderRule) error {
	query := `UPDATE reorder_rules SET reorder_point = $3, min_quantity = $4, max_quantity = $5,
			lead_time_days = $6, safety_stock = $7, updated_at = $8
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`
	tag, err := r.q.Exec(ctx, query, rule.ID, rule.TenantID, rule.ReorderPoint, rule.MinQuantity,
		rule.MaxQuantity, rule.LeadTimeDays, rule.SafetyStock, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update reorder rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SoftDelete marca deleted_at.
func (r *ReorderRuleRepo) SoftDelete(ctx context.Context, tenantID, id string) error {
	query := `UPDATE reorder_rules SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete reorder rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
