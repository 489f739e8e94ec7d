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

var (
	_ repository.StockMoveRepository   = (*StockMoveRepo)(nil)
	_ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)
)

// StockMoveRepo ledger append-only sobre PostgreSQL (usable con pool o tx).
// El esquema rechaza UPDATE y DELETE sobre stock_moves.
type StockMoveRepo struct {
	q Querier
}

// NewStockMoveRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMoveRepository(q Querier) *StockMoveRepo {
	return &StockMoveRepo{q: q}
}

const stockMoveColumns = `id, transaction_id, tenant_id, product_id, type, sequence, quantity, unit_cost, total_cost,
	source_location_id, destination_location_id, move_date, currency_code, reason, reference, created_at, created_by`

// Create inserta una fila del ledger. Una secuencia repetida para el mismo producto
// significa que otro posteo ganó la carrera.
func (r *StockMoveRepo) Create(ctx context.Context, m *entity.StockMove) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `INSERT INTO stock_moves (` + stockMoveColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.TransactionID, m.TenantID, m.ProductID, string(m.Type), m.Sequence, m.Quantity,
		m.UnitCost, m.TotalCost, m.SourceLocationID, m.DestinationLocationID, m.MoveDate,
		m.CurrencyCode, m.Reason, m.Reference, m.CreatedAt, nullString(m.CreatedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewError(domain.ErrConcurrentModification, "secuencia ya posteada").
				With("position", m.TenantID+"/"+m.ProductID).With("sequence", m.Sequence)
		}
		return fmt.Errorf("create stock move: %w", err)
	}
	return nil
}

// ListByTransaction devuelve las patas de una transacción en orden de secuencia.
func (r *StockMoveRepo) ListByTransaction(ctx context.Context, tenantID, transactionID string) ([]*entity.StockMove, error) {
	query := `SELECT ` + stockMoveColumns + ` FROM stock_moves
		WHERE tenant_id = $1 AND transaction_id = $2 ORDER BY sequence`
	rows, err := r.q.Query(ctx, query, tenantID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list moves by transaction: %w", err)
	}
	return collectMoves(rows)
}

// ListByProduct movimientos con secuencia > afterSequence; limit <= 0 sin límite.
func (r *StockMoveRepo) ListByProduct(ctx context.Context, key entity.PositionKey, afterSequence int64, limit int) ([]*entity.StockMove, error) {
	query := `SELECT ` + stockMoveColumns + ` FROM stock_moves
		WHERE tenant_id = $1 AND product_id = $2 AND sequence > $3 ORDER BY sequence`
	args := []any{key.TenantID, key.ProductID, afterSequence}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list moves by product: %w", err)
	}
	return collectMoves(rows)
}

func collectMoves(rows pgx.Rows) ([]*entity.StockMove, error) {
	defer rows.Close()
	list := make([]*entity.StockMove, 0)
	for rows.Next() {
		var m entity.StockMove
		var typ string
		var createdBy *string
		if err := rows.Scan(&m.ID, &m.TransactionID, &m.TenantID, &m.ProductID, &typ, &m.Sequence, &m.Quantity,
			&m.UnitCost, &m.TotalCost, &m.SourceLocationID, &m.DestinationLocationID, &m.MoveDate,
			&m.CurrencyCode, &m.Reason, &m.Reference, &m.CreatedAt, &createdBy); err != nil {
			return nil, fmt.Errorf("scan stock move: %w", err)
		}
		m.Type = entity.MoveType(typ)
		m.CreatedBy = derefString(createdBy)
		list = append(list, &m)
	}
	return list, rows.Err()
}

// IdempotencyRepo claves de idempotencia por tenant.
type IdempotencyRepo struct {
	q Querier
}

// NewIdempotencyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIdempotencyRepository(q Querier) *IdempotencyRepo {
	return &IdempotencyRepo{q: q}
}

// Get devuelve nil, nil si la clave no existe.
func (r *IdempotencyRepo) Get(ctx context.Context, tenantID, key string) (*entity.IdempotencyRecord, error) {
	query := `SELECT tenant_id, key, transaction_id, fingerprint, cogs, variance, created_at
		FROM idempotency_keys WHERE tenant_id = $1 AND key = $2`
	var rec entity.IdempotencyRecord
	err := r.q.QueryRow(ctx, query, tenantID, key).Scan(
		&rec.TenantID, &rec.Key, &rec.TransactionID, &rec.Fingerprint, &rec.Cogs, &rec.Variance, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return &rec, nil
}

// Create devuelve domain.ErrDuplicate si la clave ya estaba confirmada. Si otra transacción
// la tiene pendiente, el INSERT espera a que esa termine.
func (r *IdempotencyRepo) Create(ctx context.Context, rec *entity.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_keys (tenant_id, key, transaction_id, fingerprint, cogs, variance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (tenant_id, key) DO NOTHING`
	tag, err := r.q.Exec(ctx, query,
		rec.TenantID, rec.Key, rec.TransactionID, rec.Fingerprint, rec.Cogs, rec.Variance, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}
	return nil
}
