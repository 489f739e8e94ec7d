package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var (
	_ repository.ValuationRepository        = (*ValuationRepo)(nil)
	_ repository.ValuationSettingRepository = (*ValuationSettingRepo)(nil)
)

// ValuationRepo estado de costo, capas FIFO y auditoría de valoración.
type ValuationRepo struct {
	q Querier
}

// NewValuationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewValuationRepository(q Querier) *ValuationRepo {
	return &ValuationRepo{q: q}
}

// GetState devuelve nil, nil si el producto aún no tiene valoración.
func (r *ValuationRepo) GetState(ctx context.Context, key entity.PositionKey) (*entity.ValuationState, error) {
	query := `SELECT tenant_id, product_id, method, quantity, total_value, average_cost, standard_cost, currency_code, updated_at
		FROM valuation_states WHERE tenant_id = $1 AND product_id = $2`
	var st entity.ValuationState
	var method string
	err := r.q.QueryRow(ctx, query, key.TenantID, key.ProductID).Scan(
		&st.TenantID, &st.ProductID, &method, &st.Quantity, &st.TotalValue, &st.AverageCost,
		&st.StandardCost, &st.CurrencyCode, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get valuation state: %w", err)
	}
	st.Method = entity.ValuationMethod(method)
	return &st, nil
}

// SaveState upsert del estado de costo.
func (r *ValuationRepo) SaveState(ctx context.Context, st *entity.ValuationState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	query := `INSERT INTO valuation_states
		(tenant_id, product_id, method, quantity, total_value, average_cost, standard_cost, currency_code, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, product_id) DO UPDATE SET
			method = EXCLUDED.method, quantity = EXCLUDED.quantity, total_value = EXCLUDED.total_value,
			average_cost = EXCLUDED.average_cost, standard_cost = EXCLUDED.standard_cost,
			currency_code = EXCLUDED.currency_code, updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, st.TenantID, st.ProductID, string(st.Method), st.Quantity, st.TotalValue,
		st.AverageCost, st.StandardCost, st.CurrencyCode, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save valuation state: %w", err)
	}
	return nil
}

// ListLayers capas con pendiente > 0 en orden de llegada.
func (r *ValuationRepo) ListLayers(ctx context.Context, key entity.PositionKey) ([]*entity.CostLayer, error) {
	query := `SELECT id, tenant_id, product_id, move_id, sequence, original_quantity, remaining_quantity, unit_cost, created_at
		FROM cost_layers WHERE tenant_id = $1 AND product_id = $2 AND remaining_quantity > 0
		ORDER BY sequence, created_at, id`
	rows, err := r.q.Query(ctx, query, key.TenantID, key.ProductID)
	if err != nil {
		return nil, fmt.Errorf("list cost layers: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.CostLayer, 0)
	for rows.Next() {
		var l entity.CostLayer
		if err := rows.Scan(&l.ID, &l.TenantID, &l.ProductID, &l.MoveID, &l.Sequence, &l.OriginalQuantity,
			&l.RemainingQuantity, &l.UnitCost, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cost layer: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}

// SaveLayers inserta capas nuevas y actualiza la cantidad pendiente de las existentes, en un batch.
func (r *ValuationRepo) SaveLayers(ctx context.Context, layers []*entity.CostLayer) error {
	if len(layers) == 0 {
		return nil
	}
	query := `INSERT INTO cost_layers
		(id, tenant_id, product_id, move_id, sequence, original_quantity, remaining_quantity, unit_cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET remaining_quantity = EXCLUDED.remaining_quantity`
	batch := &pgx.Batch{}
	for _, l := range layers {
		if l.RemainingQuantity < 0 || l.RemainingQuantity > l.OriginalQuantity {
			return domain.NewError(domain.ErrInvalidInput, "cantidad pendiente de capa fuera de rango").With("layer_id", l.ID)
		}
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now().UTC()
		}
		batch.Queue(query, l.ID, l.TenantID, l.ProductID, l.MoveID, l.Sequence, l.OriginalQuantity,
			l.RemainingQuantity, l.UnitCost, l.CreatedAt)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()
	for range layers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save cost layer: %w", err)
		}
	}
	return nil
}

// AppendEntry agrega un registro de auditoría de valoración.
func (r *ValuationRepo) AppendEntry(ctx context.Context, e *entity.ValuationEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	query := `INSERT INTO valuation_entries
		(id, tenant_id, product_id, move_id, kind, method, quantity_delta, value_delta, cogs, variance,
		 resulting_quantity, resulting_value, resulting_average, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query, e.ID, e.TenantID, e.ProductID, e.MoveID, string(e.Kind), string(e.Method),
		e.QuantityDelta, e.ValueDelta, e.Cogs, e.Variance, e.ResultingQuantity, e.ResultingValue,
		e.ResultingAverage, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append valuation entry: %w", err)
	}
	return nil
}

// ListEntries registros más recientes primero; limit <= 0 sin límite.
func (r *ValuationRepo) ListEntries(ctx context.Context, key entity.PositionKey, limit int) ([]*entity.ValuationEntry, error) {
	query := `SELECT id, tenant_id, product_id, move_id, kind, method, quantity_delta, value_delta, cogs, variance,
		resulting_quantity, resulting_value, resulting_average, created_at
		FROM valuation_entries WHERE tenant_id = $1 AND product_id = $2 ORDER BY seq DESC`
	args := []any{key.TenantID, key.ProductID}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list valuation entries: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.ValuationEntry, 0)
	for rows.Next() {
		var e entity.ValuationEntry
		var kind, method string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ProductID, &e.MoveID, &kind, &method, &e.QuantityDelta,
			&e.ValueDelta, &e.Cogs, &e.Variance, &e.ResultingQuantity, &e.ResultingValue,
			&e.ResultingAverage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan valuation entry: %w", err)
		}
		e.Kind = entity.ValuationEntryKind(kind)
		e.Method = entity.ValuationMethod(method)
		list = append(list, &e)
	}
	return list, rows.Err()
}

// ValuationSettingRepo configuración de métodos de valoración por alcance.
type ValuationSettingRepo struct {
	q Querier
}

// NewValuationSettingRepository construye el adaptador. Pasar pool o tx (Querier).
func NewValuationSettingRepository(q Querier) *ValuationSettingRepo {
	return &ValuationSettingRepo{q: q}
}

const settingColumns = `id, tenant_id, scope, scope_id, method, created_at, updated_at, deleted_at`

func scanSetting(row pgx.Row) (*entity.ValuationSetting, error) {
	var s entity.ValuationSetting
	var scope, method string
	if err := row.Scan(&s.ID, &s.TenantID, &scope, &s.ScopeID, &method, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt); err != nil {
		return nil, err
	}
	s.Scope = entity.ValuationScope(scope)
	s.Method = entity.ValuationMethod(method)
	return &s, nil
}

// GetByID incluye configuraciones eliminadas. nil, nil si no existe.
func (r *ValuationSettingRepo) GetByID(ctx context.Context, id string) (*entity.ValuationSetting, error) {
	s, err := scanSetting(r.q.QueryRow(ctx, `SELECT `+settingColumns+` FROM valuation_settings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get valuation setting by id: %w", err)
	}
	return s, nil
}

// GetActive configuración vigente del alcance (scopeID nil para tenant); nil, nil si no hay.
func (r *ValuationSettingRepo) GetActive(ctx context.Context, tenantID string, scope entity.ValuationScope, scopeID *string) (*entity.ValuationSetting, error) {
	query := `SELECT ` + settingColumns + ` FROM valuation_settings
		WHERE tenant_id = $1 AND scope = $2 AND scope_id IS NOT DISTINCT FROM $3 AND deleted_at IS NULL`
	s, err := scanSetting(r.q.QueryRow(ctx, query, tenantID, string(scope), scopeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get valuation setting: %w", err)
	}
	return s, nil
}

// Create devuelve domain.ErrDuplicate si ya hay una activa para el alcance (índice único parcial).
func (r *ValuationSettingRepo) Create(ctx context.Context, s *entity.ValuationSetting) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	query := `INSERT INTO valuation_settings (` + settingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query, s.ID, s.TenantID, string(s.Scope), s.ScopeID, string(s.Method),
		s.CreatedAt, s.UpdatedAt, s.DeletedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create valuation setting: %w", err)
	}
	return nil
}

// SoftDelete marca deleted_at; domain.ErrNotFound si no hay una activa con ese id.
func (r *ValuationSettingRepo) SoftDelete(ctx context.Context, tenantID, id string) error {
	query := `UPDATE valuation_settings SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`
	tag, err := r.q.Exec(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete valuation setting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListActive configuraciones vigentes del tenant.
func (r *ValuationSettingRepo) ListActive(ctx context.Context, tenantID string) ([]*entity.ValuationSetting, error) {
	query := `SELECT ` + settingColumns + ` FROM valuation_settings
		WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY scope, scope_id NULLS FIRST`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list valuation settings: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.ValuationSetting, 0)
	for rows.Next() {
		s, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan valuation setting: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
