package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

func TestReplay_TrasladoSumaCero(t *testing.T) {
	a1, a2 := locA1, locA2
	moves := []*entity.StockMove{
		{Sequence: 1, Type: entity.MoveTypeReceipt, Quantity: 10, DestinationLocationID: &a1},
		{Sequence: 2, Type: entity.MoveTypeTransfer, Quantity: -4, SourceLocationID: &a1, DestinationLocationID: &a2},
		{Sequence: 3, Type: entity.MoveTypeTransfer, Quantity: 4, SourceLocationID: &a1, DestinationLocationID: &a2},
		{Sequence: 4, Type: entity.MoveTypeDelivery, Quantity: -1, SourceLocationID: &a2},
	}
	r := appinv.Replay(moves)
	assert.Equal(t, int64(9), r.OnHand)
	assert.Equal(t, int64(4), r.LastSequence)
	assert.Equal(t, int64(6), r.Locations[locA1])
	assert.Equal(t, int64(3), r.Locations[locA2])
}

func TestReconcile_SecuenciaMixta(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 30, 10, "r1")
	f.receive(t, prodA, 20, 13, "r2")
	f.deliver(t, prodA, 35, "d1")
	r, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 5})
	require.NoError(t, err)
	_, err = f.engine.Reservations.Consume(f.ctx, appinv.ConsumeInput{TenantID: tenantA, ReservationID: r.ID})
	require.NoError(t, err)
	_, err = f.engine.Ledger.PostMove(f.ctx, appinv.MoveInput{
		TenantID: tenantA, ProductID: prodA, Type: entity.MoveTypeAdjustment, Quantity: -2,
		Reason: "merma", IdempotencyKey: "a1",
	})
	require.NoError(t, err)

	rep, err := f.engine.Reconcile.Reconcile(f.ctx, tenantA, prodA)
	require.NoError(t, err)
	assert.True(t, rep.OK(), "%+v", rep.Discrepancies)
	assert.Equal(t, int64(8), rep.OnHand)
	assert.Equal(t, 5, rep.Moves)

	view, err := f.engine.Valuation.GetValuation(f.ctx, tenantA, prodA)
	require.NoError(t, err)
	var layered int64
	for _, l := range view.Layers {
		layered += l.RemainingQuantity
	}
	assert.Equal(t, rep.OnHand, layered)
	assert.Equal(t, int64(104), view.State.TotalValue) // 8 × 13
}

func TestReconcileTenant_TodasLasPosiciones(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 5, 10, "r1")
	f.receive(t, prodB, 7, 10, "r2")

	reports, err := f.engine.Reconcile.ReconcileTenant(f.ctx, tenantA)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.True(t, r.OK(), "%s: %+v", r.ProductID, r.Discrepancies)
	}

	positions, err := f.engine.Positions.ListPositions(f.ctx, tenantA)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}
