package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

var _ appinv.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL REPEATABLE READ.
// El control optimista lo hace PositionRepo.Save (UPDATE ... WHERE version = esperada);
// los fallos de serialización de Postgres se reportan igual, como modificación concurrente.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia la transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, key entity.PositionKey, fn func(ctx context.Context, repos appinv.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, txRepos(tx)); err != nil {
		return asConcurrent(err, "conflicto de serialización en "+key.String())
	}
	return commitError(tx.Commit(ctx), "conflicto al confirmar "+key.String())
}

func txRepos(q Querier) appinv.TxRepos {
	return appinv.TxRepos{
		Moves:        NewStockMoveRepository(q),
		Idempotency:  NewIdempotencyRepository(q),
		Positions:    NewPositionRepository(q),
		Valuations:   NewValuationRepository(q),
		Reservations: NewReservationRepository(q),
	}
}

// NewRepositories arma las dependencias del núcleo sobre el pool: lecturas directas y
// mutaciones por TxRunner.
func NewRepositories(pool *pgxpool.Pool) appinv.Repositories {
	return appinv.Repositories{
		Tx:           NewTxRunner(pool),
		Products:     NewProductRepository(pool),
		Locations:    NewLocationRepository(pool),
		Tenants:      NewTenantRepository(pool),
		Moves:        NewStockMoveRepository(pool),
		Positions:    NewPositionRepository(pool),
		Valuations:   NewValuationRepository(pool),
		Settings:     NewValuationSettingRepository(pool),
		Conversions:  NewUomConversionRepository(pool),
		Reservations: NewReservationRepository(pool),
		Rules:        NewReorderRuleRepository(pool),
	}
}
