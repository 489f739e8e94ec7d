package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
)

type fixedSupply map[string]int64

func (s fixedSupply) Incoming(_ context.Context, _, productID string, _ *string) (int64, error) {
	return s[productID], nil
}

type capturePublisher struct {
	mu    sync.Mutex
	calls [][]*entity.ReplenishmentSuggestion
	err   error
}

func (p *capturePublisher) Publish(_ context.Context, s []*entity.ReplenishmentSuggestion) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, s)
	return p.err
}

func (f *fixture) rule(t *testing.T, product string, point, minQty, maxQty int64, lead int32) *entity.ReorderRule {
	t.Helper()
	r, err := f.engine.Replenishment.CreateRule(f.ctx, appinv.RuleInput{
		TenantID: tenantA, ProductID: product, ReorderPoint: point,
		MinQuantity: minQty, MaxQuantity: maxQty, LeadTimeDays: lead,
	})
	require.NoError(t, err)
	return r
}

func TestEvaluate_SugiereHastaElMaximo(t *testing.T) {
	f := newFixture(t, func(o *appinv.Options) { o.IncomingSupply = fixedSupply{prodA: 5} })
	f.receive(t, prodA, 20, 5, "r1")
	_, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 10})
	require.NoError(t, err)
	f.rule(t, prodA, 30, 10, 100, 7)

	s, err := f.engine.Replenishment.Evaluate(f.ctx, tenantA, prodA, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(10), s.AvailableQuantity)
	assert.Equal(t, int64(10), s.ReservedQuantity)
	assert.Equal(t, int64(5), s.IncomingQuantity)
	assert.Equal(t, int64(15), s.EffectiveStock)
	assert.Equal(t, int64(85), s.SuggestedQuantity)
	assert.Equal(t, fixedNow.AddDate(0, 0, 7), s.ExpectedBy)
}

func TestEvaluate_SinReglaOSobrePunto(t *testing.T) {
	f := newFixture(t)
	s, err := f.engine.Replenishment.Evaluate(f.ctx, tenantA, prodA, nil)
	require.NoError(t, err)
	assert.Nil(t, s, "sin regla")

	f.receive(t, prodA, 40, 5, "r1")
	f.rule(t, prodA, 30, 10, 100, 7)
	s, err = f.engine.Replenishment.Evaluate(f.ctx, tenantA, prodA, nil)
	require.NoError(t, err)
	assert.Nil(t, s, "stock sobre el punto de reorden")
}

func TestEvaluate_StockDeSeguridadAditivo(t *testing.T) {
	f := newFixture(t, func(o *appinv.Options) { o.SafetyStockMode = inventory.SafetyStockAdditive })
	f.receive(t, prodA, 15, 5, "r1")
	_, err := f.engine.Replenishment.CreateRule(f.ctx, appinv.RuleInput{
		TenantID: tenantA, ProductID: prodA, ReorderPoint: 30, MinQuantity: 10, MaxQuantity: 100,
		LeadTimeDays: 3, SafetyStock: 20,
	})
	require.NoError(t, err)

	s, err := f.engine.Replenishment.Evaluate(f.ctx, tenantA, prodA, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, int64(105), s.SuggestedQuantity)
}

func TestEvaluate_ReglaPorBodega(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Ledger.PostMove(f.ctx, appinv.MoveInput{
		TenantID: tenantA, ProductID: prodA, Type: entity.MoveTypeReceipt, Quantity: 50,
		UnitCost: ptr(int64(5)), DestinationLocationID: ptr(locA1), IdempotencyKey: "r1",
	})
	require.NoError(t, err)
	_, err = f.engine.Replenishment.CreateRule(f.ctx, appinv.RuleInput{
		TenantID: tenantA, ProductID: prodA, WarehouseID: ptr(locA2), ReorderPoint: 10,
		MinQuantity: 5, MaxQuantity: 40, LeadTimeDays: 2,
	})
	require.NoError(t, err)

	s, err := f.engine.Replenishment.Evaluate(f.ctx, tenantA, prodA, ptr(locA2))
	require.NoError(t, err)
	require.NotNil(t, s, "la ubicación A2 está vacía aunque el producto tenga stock")
	assert.Equal(t, int64(0), s.EffectiveStock)
	assert.Equal(t, int64(40), s.SuggestedQuantity)

	s, err = f.engine.Replenishment.Evaluate(f.ctx, tenantA, prodA, nil)
	require.NoError(t, err)
	assert.Nil(t, s, "no hay regla sin bodega")
}

func TestEvaluateAll_OrdenaPorUrgencia(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 25, 5, "r1") // déficit 5
	f.receive(t, prodB, 2, 5, "r2")  // déficit 28
	f.rule(t, prodA, 30, 10, 100, 7)
	f.rule(t, prodB, 30, 10, 100, 3)

	out, err := f.engine.Replenishment.EvaluateAll(f.ctx, tenantA)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, prodB, out[0].ProductID)
	assert.Equal(t, 1, out[0].Priority)
	assert.Equal(t, prodA, out[1].ProductID)
	assert.Equal(t, 2, out[1].Priority)

	other, err := f.engine.Replenishment.EvaluateAll(f.ctx, tenantB)
	require.NoError(t, err)
	assert.Empty(t, other, "las reglas de un tenant no se ven desde otro")
}

func TestEvaluateAll_Cancelado(t *testing.T) {
	f := newFixture(t)
	f.rule(t, prodA, 30, 10, 100, 7)
	f.rule(t, prodB, 30, 10, 100, 3)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	out, err := f.engine.Replenishment.EvaluateAll(ctx, tenantA)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReorderRule_Administracion(t *testing.T) {
	f := newFixture(t)
	r := f.rule(t, prodA, 30, 10, 100, 7)

	_, err := f.engine.Replenishment.CreateRule(f.ctx, appinv.RuleInput{
		TenantID: tenantA, ProductID: prodA, ReorderPoint: 1, MinQuantity: 1, MaxQuantity: 2, LeadTimeDays: 1,
	})
	assert.ErrorIs(t, err, domain.ErrConflict, "una regla activa por producto y bodega")

	_, err = f.engine.Replenishment.CreateRule(f.ctx, appinv.RuleInput{
		TenantID: tenantA, ProductID: prodB, ReorderPoint: 1, MinQuantity: 5, MaxQuantity: 2, LeadTimeDays: 1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	upd, err := f.engine.Replenishment.UpdateRule(f.ctx, tenantA, r.ID, appinv.RuleInput{
		ReorderPoint: 50, MinQuantity: 10, MaxQuantity: 200, LeadTimeDays: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50), upd.ReorderPoint)

	_, err = f.engine.Replenishment.GetRule(f.ctx, tenantB, r.ID)
	assert.ErrorIs(t, err, domain.ErrTenantMismatch)

	require.NoError(t, f.engine.Replenishment.DeleteRule(f.ctx, tenantA, r.ID))
	_, err = f.engine.Replenishment.GetRule(f.ctx, tenantA, r.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rules, err := f.engine.Replenishment.ListRules(f.ctx, tenantA)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestReorderScheduler_PublicaPorTenant(t *testing.T) {
	f := newFixture(t)
	f.rule(t, prodA, 30, 10, 100, 7)
	pub := &capturePublisher{}

	s := appinv.NewReorderScheduler(f.engine, pub, time.Minute)
	require.NoError(t, s.ScanOnce(f.ctx))

	require.Len(t, pub.calls, 1)
	require.Len(t, pub.calls[0], 1)
	assert.Equal(t, int64(100), pub.calls[0][0].SuggestedQuantity)
}

func TestReorderScheduler_FalloAlPublicarNoEsFatal(t *testing.T) {
	f := newFixture(t)
	f.rule(t, prodA, 30, 10, 100, 7)
	pub := &capturePublisher{err: errors.New("broker caído")}

	s := appinv.NewReorderScheduler(f.engine, pub, time.Minute)
	assert.NoError(t, s.ScanOnce(f.ctx))
	assert.Len(t, pub.calls, 1)
}

func TestReorderScheduler_RunTerminaConElContexto(t *testing.T) {
	f := newFixture(t)
	s := appinv.NewReorderScheduler(f.engine, nil, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(f.ctx, 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run no terminó al cancelar el contexto")
	}
}
