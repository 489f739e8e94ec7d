package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.PositionRepository = (*PositionRepo)(nil)

// PositionRepo saldos por (tenant, producto) y por ubicación, con versión optimista.
type PositionRepo struct {
	q Querier
}

// NewPositionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPositionRepository(q Querier) *PositionRepo {
	return &PositionRepo{q: q}
}

// Get devuelve la posición; si no existe, una vacía con Version 0.
func (r *PositionRepo) Get(ctx context.Context, key entity.PositionKey) (*entity.InventoryPosition, error) {
	query := `SELECT tenant_id, product_id, available_quantity, reserved_quantity, last_sequence, version, updated_at
		FROM inventory_positions WHERE tenant_id = $1 AND product_id = $2`
	var p entity.InventoryPosition
	err := r.q.QueryRow(ctx, query, key.TenantID, key.ProductID).Scan(
		&p.TenantID, &p.ProductID, &p.AvailableQuantity, &p.ReservedQuantity, &p.LastSequence, &p.Version, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.NewInventoryPosition(key), nil
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &p, nil
}

// Save inserta (expectedVersion 0) o actualiza solo si la versión almacenada coincide.
// Cero filas afectadas = otro escritor confirmó antes.
func (r *PositionRepo) Save(ctx context.Context, pos *entity.InventoryPosition, expectedVersion int64) error {
	if pos.AvailableQuantity < 0 || pos.ReservedQuantity < 0 {
		return domain.NewError(domain.ErrInvalidInput, "saldos negativos").
			With("available", pos.AvailableQuantity).With("reserved", pos.ReservedQuantity)
	}
	if pos.UpdatedAt.IsZero() {
		pos.UpdatedAt = time.Now().UTC()
	}
	next := expectedVersion + 1
	var (
		query string
		args  []any
	)
	if expectedVersion == 0 {
		query = `INSERT INTO inventory_positions
			(tenant_id, product_id, available_quantity, reserved_quantity, last_sequence, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tenant_id, product_id) DO NOTHING`
		args = []any{pos.TenantID, pos.ProductID, pos.AvailableQuantity, pos.ReservedQuantity, pos.LastSequence, next, pos.UpdatedAt}
	} else {
		query = `UPDATE inventory_positions
			SET available_quantity = $3, reserved_quantity = $4, last_sequence = $5, version = $6, updated_at = $7
			WHERE tenant_id = $1 AND product_id = $2 AND version = $8`
		args = []any{pos.TenantID, pos.ProductID, pos.AvailableQuantity, pos.ReservedQuantity, pos.LastSequence, next, pos.UpdatedAt, expectedVersion}
	}
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		if isRetryable(err) {
			return asConcurrent(err, "versión de la posición desactualizada")
		}
		return fmt.Errorf("save position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.ErrConcurrentModification, "versión de la posición desactualizada").
			With("position", pos.Key().String()).With("expected_version", expectedVersion)
	}
	pos.Version = next
	return nil
}

// ListByTenant posiciones de un tenant ordenadas por producto.
func (r *PositionRepo) ListByTenant(ctx context.Context, tenantID string) ([]*entity.InventoryPosition, error) {
	query := `SELECT tenant_id, product_id, available_quantity, reserved_quantity, last_sequence, version, updated_at
		FROM inventory_positions WHERE tenant_id = $1 ORDER BY product_id`
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.InventoryPosition, 0)
	for rows.Next() {
		var p entity.InventoryPosition
		if err := rows.Scan(&p.TenantID, &p.ProductID, &p.AvailableQuantity, &p.ReservedQuantity,
			&p.LastSequence, &p.Version, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// GetLocationBalance devuelve saldo 0 si la ubicación no tiene registro.
func (r *PositionRepo) GetLocationBalance(ctx context.Context, key entity.PositionKey, locationID string) (*entity.LocationBalance, error) {
	query := `SELECT quantity, updated_at FROM location_balances
		WHERE tenant_id = $1 AND product_id = $2 AND location_id = $3`
	b := &entity.LocationBalance{TenantID: key.TenantID, ProductID: key.ProductID, LocationID: locationID}
	err := r.q.QueryRow(ctx, query, key.TenantID, key.ProductID, locationID).Scan(&b.Quantity, &b.UpdatedAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get location balance: %w", err)
	}
	return b, nil
}

// SaveLocationBalance upsert del saldo por ubicación. Va siempre junto a un Save de la
// posición, que es quien detecta la concurrencia.
func (r *PositionRepo) SaveLocationBalance(ctx context.Context, b *entity.LocationBalance) error {
	if b.Quantity < 0 {
		return domain.NewError(domain.ErrInvalidInput, "saldo de ubicación negativo").With("location_id", b.LocationID)
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	query := `INSERT INTO location_balances (tenant_id, product_id, location_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, product_id, location_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`
	if _, err := r.q.Exec(ctx, query, b.TenantID, b.ProductID, b.LocationID, b.Quantity, b.UpdatedAt); err != nil {
		return fmt.Errorf("save location balance: %w", err)
	}
	return nil
}

// ListLocationBalances saldos por ubicación ordenados por id de ubicación.
func (r *PositionRepo) ListLocationBalances(ctx context.Context, key entity.PositionKey) ([]*entity.LocationBalance, error) {
	query := `SELECT tenant_id, product_id, location_id, quantity, updated_at FROM location_balances
		WHERE tenant_id = $1 AND product_id = $2 ORDER BY location_id`
	rows, err := r.q.Query(ctx, query, key.TenantID, key.ProductID)
	if err != nil {
		return nil, fmt.Errorf("list location balances: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.LocationBalance, 0)
	for rows.Next() {
		var b entity.LocationBalance
		if err := rows.Scan(&b.TenantID, &b.ProductID, &b.LocationID, &b.Quantity, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan location balance: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}
