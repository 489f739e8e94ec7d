package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-ledger/pkg/metrics"
)

const (
	tenantA = "tenant-a"
	tenantB = "tenant-b"
	prodA   = "prod-a"
	prodB   = "prod-b"
	prodX   = "prod-x" // de tenantB
	catA    = "cat-a"
	locA1   = "loc-a1"
	locA2   = "loc-a2"
	locB1   = "loc-b1"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	engine *appinv.Engine
	ctx    context.Context
}

func newFixture(t *testing.T, mutate ...func(*appinv.Options)) *fixture {
	t.Helper()
	s := memory.New()
	for _, id := range []string{tenantA, tenantB} {
		s.PutTenant(&entity.Tenant{ID: id, Name: id, Status: entity.StatusActive})
	}
	cat := catA
	s.PutProduct(&entity.Product{ID: prodA, TenantID: tenantA, CategoryID: &cat, SKU: "A-1", BaseUnit: "UNIT", Status: entity.StatusActive})
	s.PutProduct(&entity.Product{ID: prodB, TenantID: tenantA, SKU: "B-1", BaseUnit: "UNIT", Status: entity.StatusActive})
	s.PutProduct(&entity.Product{ID: prodX, TenantID: tenantB, SKU: "X-1", BaseUnit: "UNIT", Status: entity.StatusActive})
	s.PutLocation(&entity.Location{ID: locA1, TenantID: tenantA, WarehouseID: "wh-a", Name: "A1", Status: entity.StatusActive})
	s.PutLocation(&entity.Location{ID: locA2, TenantID: tenantA, WarehouseID: "wh-a", Name: "A2", Status: entity.StatusActive})
	s.PutLocation(&entity.Location{ID: locB1, TenantID: tenantB, WarehouseID: "wh-b", Name: "B1", Status: entity.StatusActive})

	opts := appinv.DefaultOptions()
	opts.Now = func() time.Time { return fixedNow }
	opts.RetryInitial = time.Millisecond
	opts.RetryMaxInterval = 5 * time.Millisecond
	for _, m := range mutate {
		m(&opts)
	}
	e := appinv.NewEngine(s.Repositories(), opts, zerolog.Nop(), metrics.New(metrics.DefaultConfig()))
	return &fixture{store: s, engine: e, ctx: context.Background()}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) receive(t *testing.T, product string, qty, unitCost int64, key string) *appinv.PostResult {
	t.Helper()
	res, err := f.engine.Ledger.PostMove(f.ctx, appinv.MoveInput{
		TenantID:       tenantA,
		ProductID:      product,
		Type:           entity.MoveTypeReceipt,
		Quantity:       qty,
		UnitCost:       ptr(unitCost),
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) deliver(t *testing.T, product string, qty int64, key string) *appinv.PostResult {
	t.Helper()
	res, err := f.engine.Ledger.PostMove(f.ctx, appinv.MoveInput{
		TenantID:       tenantA,
		ProductID:      product,
		Type:           entity.MoveTypeDelivery,
		Quantity:       -qty,
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) setMethod(t *testing.T, product string, m entity.ValuationMethod) {
	t.Helper()
	_, err := f.engine.Valuation.SetValuationSetting(f.ctx, appinv.SettingInput{
		TenantID: tenantA,
		Scope:    entity.ScopeProduct,
		ScopeID:  ptr(product),
		Method:   m,
	})
	require.NoError(t, err)
}

// assertReconciled verifica que la reproducción del ledger coincide con lo almacenado.
func (f *fixture) assertReconciled(t *testing.T, product string) {
	t.Helper()
	rep, err := f.engine.Reconcile.Reconcile(f.ctx, tenantA, product)
	require.NoError(t, err)
	require.True(t, rep.OK(), "diferencias: %+v", rep.Discrepancies)
}
