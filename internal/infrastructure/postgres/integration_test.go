//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-ledger/pkg/config"
)

const (
	tenantID  = "tenant-int"
	productID = "prod-int"
)

// startPostgres levanta postgres:16 y devuelve un pool con el esquema aplicado.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "ledger",
			"POSTGRES_PASSWORD": "ledger",
			"POSTGRES_DB":       "ledger",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, config.DBConfig{
		Host: host, Port: port.Int(), User: "ledger", Password: "ledger", DBName: "ledger",
		SSLMode: "disable", MaxConns: 10, MinConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	// Aplicar dos veces no debe fallar.
	require.NoError(t, postgres.Migrate(ctx, pool))

	require.NoError(t, postgres.NewTenantRepository(pool).Upsert(ctx, &entity.Tenant{ID: tenantID, Name: "Integración"}))
	require.NoError(t, postgres.NewProductRepository(pool).Upsert(ctx, &entity.Product{
		ID: productID, TenantID: tenantID, SKU: "INT-1", Name: "Producto", BaseUnit: "UNIT",
	}))
	require.NoError(t, postgres.NewLocationRepository(pool).Upsert(ctx, &entity.Location{
		ID: "loc-1", TenantID: tenantID, WarehouseID: "wh-1", Name: "Bodega 1",
	}))
	return pool
}

func newEngine(pool *pgxpool.Pool) *appinv.Engine {
	opts := appinv.DefaultOptions()
	opts.MaxRetries = 50
	opts.RetryInitial = time.Millisecond
	opts.RetryMaxInterval = 10 * time.Millisecond
	return appinv.NewEngine(postgres.NewRepositories(pool), opts, zerolog.Nop(), nil)
}

func ptr[T any](v T) *T { return &v }

func TestIntegration_LedgerFIFOYReplay(t *testing.T) {
	pool := startPostgres(t)
	e := newEngine(pool)
	ctx := context.Background()

	for i, cost := range []int64{10, 15} {
		_, err := e.Ledger.PostMove(ctx, appinv.MoveInput{
			TenantID: tenantID, ProductID: productID, Type: entity.MoveTypeReceipt,
			Quantity: 10, UnitCost: ptr(cost), DestinationLocationID: ptr("loc-1"),
			IdempotencyKey: fmt.Sprintf("rcv-%d", i),
		})
		require.NoError(t, err)
	}

	in := appinv.MoveInput{
		TenantID: tenantID, ProductID: productID, Type: entity.MoveTypeDelivery,
		Quantity: -15, SourceLocationID: ptr("loc-1"), IdempotencyKey: "dlv-1",
	}
	res, err := e.Ledger.PostMove(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(10*10+5*15), res.Cogs)
	assert.False(t, res.Replayed)

	again, err := e.Ledger.PostMove(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, res.TransactionID, again.TransactionID)
	assert.Equal(t, res.Cogs, again.Cogs)

	in.Quantity = -1
	_, err = e.Ledger.PostMove(ctx, in)
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	pos, err := e.Positions.GetPosition(ctx, tenantID, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos.OnHand())

	bal, err := e.Positions.GetLocationBalance(ctx, tenantID, productID, "loc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal.Quantity)

	rep, err := e.Reconcile.Reconcile(ctx, tenantID, productID)
	require.NoError(t, err)
	assert.True(t, rep.OK(), "%+v", rep.Discrepancies)
}

func TestIntegration_EntregasConcurrentesSinSobreventa(t *testing.T) {
	pool := startPostgres(t)
	e := newEngine(pool)
	ctx := context.Background()

	_, err := e.Ledger.PostMove(ctx, appinv.MoveInput{
		TenantID: tenantID, ProductID: productID, Type: entity.MoveTypeReceipt,
		Quantity: 10, UnitCost: ptr(int64(7)), IdempotencyKey: "rcv",
	})
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int64
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Ledger.PostMove(ctx, appinv.MoveInput{
				TenantID: tenantID, ProductID: productID, Type: entity.MoveTypeDelivery,
				Quantity: -1, IdempotencyKey: fmt.Sprintf("dlv-%d", i),
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrInsufficientStock) && !errors.Is(err, domain.ErrConcurrentModification) {
				t.Errorf("error inesperado: %v", err)
			}
		}(i)
	}
	wg.Wait()

	pos, err := e.Positions.GetPosition(ctx, tenantID, productID)
	require.NoError(t, err)
	assert.LessOrEqual(t, ok, int64(10))
	assert.Equal(t, 10-ok, pos.OnHand())

	moves, err := postgres.NewStockMoveRepository(pool).ListByProduct(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, moves, int(1+ok))
	for i, m := range moves {
		assert.Equal(t, int64(i+1), m.Sequence)
	}
}

func TestIntegration_ReservaYConsumo(t *testing.T) {
	pool := startPostgres(t)
	e := newEngine(pool)
	ctx := context.Background()

	_, err := e.Ledger.PostMove(ctx, appinv.MoveInput{
		TenantID: tenantID, ProductID: productID, Type: entity.MoveTypeReceipt,
		Quantity: 5, UnitCost: ptr(int64(4)), IdempotencyKey: "rcv",
	})
	require.NoError(t, err)

	res, err := e.Reservations.Reserve(ctx, appinv.ReserveInput{TenantID: tenantID, ProductID: productID, Quantity: 3})
	require.NoError(t, err)

	_, err = e.Reservations.Reserve(ctx, appinv.ReserveInput{TenantID: tenantID, ProductID: productID, Quantity: 3})
	assert.ErrorIs(t, err, domain.ErrInsufficientAvailable)

	out, err := e.Reservations.Consume(ctx, appinv.ConsumeInput{TenantID: tenantID, ReservationID: res.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(12), out.Post.Cogs)

	_, err = e.Reservations.Consume(ctx, appinv.ConsumeInput{TenantID: tenantID, ReservationID: res.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)

	pos, err := e.Positions.GetPosition(ctx, tenantID, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos.AvailableQuantity)
	assert.Zero(t, pos.ReservedQuantity)
}

func TestIntegration_ConversionesYReglas(t *testing.T) {
	pool := startPostgres(t)
	e := newEngine(pool)
	ctx := context.Background()

	_, err := e.Uom.CreateConversion(ctx, appinv.ConversionInput{
		TenantID: tenantID, ProductID: productID, FromUnit: "box", ToUnit: "unit", Factor: decimal.NewFromInt(12),
	})
	require.NoError(t, err)
	_, err = e.Uom.CreateConversion(ctx, appinv.ConversionInput{
		TenantID: tenantID, ProductID: productID, FromUnit: "pallet", ToUnit: "box", Factor: decimal.NewFromInt(40),
	})
	require.NoError(t, err)

	f, err := e.Uom.Resolve(ctx, tenantID, productID, "pallet", "unit")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(480).Equal(f), f.String())

	_, err = e.Uom.CreateConversion(ctx, appinv.ConversionInput{
		TenantID: tenantID, ProductID: productID, FromUnit: "BOX", ToUnit: "UNIT", Factor: decimal.NewFromInt(10),
	})
	assert.Error(t, err)

	rule, err := e.Replenishment.CreateRule(ctx, appinv.RuleInput{
		TenantID: tenantID, ProductID: productID, ReorderPoint: 20, MinQuantity: 10, MaxQuantity: 100, LeadTimeDays: 3,
	})
	require.NoError(t, err)

	_, err = e.Replenishment.CreateRule(ctx, appinv.RuleInput{
		TenantID: tenantID, ProductID: productID, ReorderPoint: 5, MinQuantity: 1, MaxQuantity: 10, LeadTimeDays: 1,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)

	sugg, err := e.Replenishment.EvaluateAll(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, sugg, 1)
	assert.Equal(t, rule.ID, sugg[0].RuleID)
	assert.Equal(t, int64(100), sugg[0].SuggestedQuantity)
}
