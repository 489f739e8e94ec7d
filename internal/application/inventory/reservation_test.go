package inventory_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

func TestReserve_MueveDisponibleAReservado(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 10, 5, "r1")

	r, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 4, Reference: "SO-1"})
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationActive, r.Status)

	pos, err := f.engine.Positions.GetPosition(f.ctx, tenantA, prodA)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos.AvailableQuantity)
	assert.Equal(t, int64(4), pos.ReservedQuantity)
	assert.Equal(t, int64(10), pos.OnHand())

	moves, err := f.engine.Ledger.ListMoves(f.ctx, tenantA, prodA, 0, 0)
	require.NoError(t, err)
	assert.Len(t, moves, 1, "reservar no postea movimientos")
}

func TestReserve_DisponibleInsuficiente(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 3, 5, "r1")

	_, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 4})
	require.ErrorIs(t, err, domain.ErrInsufficientAvailable)
	assert.Equal(t, int64(3), domain.DetailsOf(err)["available"])
}

func TestReserve_SalidaNoPuedeUsarLoReservado(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 10, 5, "r1")
	_, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 8})
	require.NoError(t, err)

	_, err = f.engine.Ledger.PostMove(f.ctx, appinv.MoveInput{
		TenantID: tenantA, ProductID: prodA, Type: entity.MoveTypeDelivery, Quantity: -3, IdempotencyKey: "d1",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestReserve_Concurrente_SinSobreventa(t *testing.T) {
	f := newFixture(t, func(o *appinv.Options) { o.MaxRetries = 3 })
	f.receive(t, prodA, 10, 5, "r1")

	const n = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	var reserved int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 1})
			if err != nil {
				assert.True(t, errors.Is(err, domain.ErrInsufficientAvailable) || errors.Is(err, domain.ErrConcurrentModification), err.Error())
				return
			}
			mu.Lock()
			reserved += r.Quantity
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, reserved, int64(10))
	pos, err := f.engine.Positions.GetPosition(f.ctx, tenantA, prodA)
	require.NoError(t, err)
	assert.Equal(t, reserved, pos.ReservedQuantity)
	assert.Equal(t, int64(10)-reserved, pos.AvailableQuantity)
	assert.GreaterOrEqual(t, pos.AvailableQuantity, int64(0))

	active, err := f.engine.Reservations.ListActiveReservations(f.ctx, tenantA, prodA)
	require.NoError(t, err)
	assert.Len(t, active, int(reserved))
}

func TestRelease_DevuelveAlDisponible(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 10, 5, "r1")
	r, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 4})
	require.NoError(t, err)

	out, err := f.engine.Reservations.Release(f.ctx, tenantA, r.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationReleased, out.Status)

	pos, err := f.engine.Positions.GetPosition(f.ctx, tenantA, prodA)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos.AvailableQuantity)
	assert.Equal(t, int64(0), pos.ReservedQuantity)

	_, err = f.engine.Reservations.Release(f.ctx, tenantA, r.ID)
	assert.ErrorIs(t, err, domain.ErrConflict, "no se libera dos veces")
}

func TestConsume_GeneraSalida(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 10, 5, "r1")
	r, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 4, Reference: "SO-9"})
	require.NoError(t, err)

	res, err := f.engine.Reservations.Consume(f.ctx, appinv.ConsumeInput{TenantID: tenantA, ReservationID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationConsumed, res.Reservation.Status)
	require.NotNil(t, res.Reservation.ConsumedMoveID)
	assert.Equal(t, res.Post.Moves[0].ID, *res.Reservation.ConsumedMoveID)
	assert.Equal(t, int64(-4), res.Post.Moves[0].Quantity)
	assert.Equal(t, "SO-9", res.Post.Moves[0].Reference)
	assert.Equal(t, int64(20), res.Post.Cogs)
	assert.Equal(t, int64(6), res.Post.Position.AvailableQuantity)
	assert.Equal(t, int64(0), res.Post.Position.ReservedQuantity)

	_, err = f.engine.Reservations.Consume(f.ctx, appinv.ConsumeInput{TenantID: tenantA, ReservationID: r.ID})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.engine.Reservations.Release(f.ctx, tenantA, r.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	f.assertReconciled(t, prodA)
}

func TestReservation_OtroTenant(t *testing.T) {
	f := newFixture(t)
	f.receive(t, prodA, 10, 5, "r1")
	r, err := f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantA, ProductID: prodA, Quantity: 1})
	require.NoError(t, err)

	_, err = f.engine.Reservations.Release(f.ctx, tenantB, r.ID)
	assert.ErrorIs(t, err, domain.ErrTenantMismatch)
	_, err = f.engine.Reservations.GetReservation(f.ctx, tenantB, r.ID)
	assert.ErrorIs(t, err, domain.ErrTenantMismatch)

	_, err = f.engine.Reservations.Reserve(f.ctx, appinv.ReserveInput{TenantID: tenantB, ProductID: prodA, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrTenantMismatch)
}

func TestReservation_Inexistente(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Reservations.Release(f.ctx, tenantA, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
