package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// ReservationUseCase mueve cantidad entre disponible y reservado sin sobreventa.
// Cada operación es un read-modify-write versionado sobre la posición (tenant, producto).
type ReservationUseCase struct {
	*core
}

// ReserveInput entrada de Reserve.
type ReserveInput struct {
	TenantID  string
	ProductID string
	Quantity  int64
	Reference string
}

// ConsumeInput entrada de Consume: la reserva se convierte en una salida del ledger.
type ConsumeInput struct {
	TenantID         string
	ReservationID    string
	SourceLocationID *string
	MoveDate         time.Time
	CurrencyCode     string
	Reference        string
	CreatedBy        string
}

// ConsumeResult reserva consumida y el posteo que generó.
type ConsumeResult struct {
	Reservation *entity.Reservation
	Post        *PostResult
}

// Reserve retiene quantity del disponible. Falla con ErrInsufficientAvailable si no alcanza.
func (uc *ReservationUseCase) Reserve(ctx context.Context, in ReserveInput) (*entity.Reservation, error) {
	if in.Quantity <= 0 {
		return nil, domain.NewError(domain.ErrInvalidInput, "la cantidad a reservar debe ser positiva").With("quantity", in.Quantity)
	}
	if _, err := uc.requireProduct(ctx, in.TenantID, in.ProductID); err != nil {
		return nil, err
	}
	key := entity.PositionKey{TenantID: in.TenantID, ProductID: in.ProductID}

	var out *entity.Reservation
	err := uc.withRetry(ctx, "reserve", key, func() error {
		return uc.repos.Tx.Run(ctx, key, func(ctx context.Context, tx TxRepos) error {
			pos, err := tx.Positions.Get(ctx, key)
			if err != nil {
				return err
			}
			if pos.AvailableQuantity < in.Quantity {
				return domain.NewError(domain.ErrInsufficientAvailable, "la reserva excede el disponible").
					With("requested", in.Quantity).With("available", pos.AvailableQuantity)
			}
			now := uc.now()
			expected := pos.Version
			pos.AvailableQuantity -= in.Quantity
			pos.ReservedQuantity += in.Quantity
			pos.UpdatedAt = now
			if err := tx.Positions.Save(ctx, pos, expected); err != nil {
				return err
			}
			r := &entity.Reservation{
				ID:        uuid.New().String(),
				TenantID:  in.TenantID,
				ProductID: in.ProductID,
				Quantity:  in.Quantity,
				Status:    entity.ReservationActive,
				Reference: in.Reference,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Reservations.Create(ctx, r); err != nil {
				return err
			}
			out = r
			return nil
		})
	})
	uc.metrics.RecordReservation("reserve", statusLabel(err))
	if err != nil {
		return nil, err
	}
	uc.log.Debug().Str("position", key.String()).Str("reservation_id", out.ID).Int64("quantity", out.Quantity).
		Msg("reserva creada")
	return out, nil
}

// Release devuelve la cantidad reservada al disponible sin tocar el ledger.
func (uc *ReservationUseCase) Release(ctx context.Context, tenantID, reservationID string) (*entity.Reservation, error) {
	r, err := uc.lookup(ctx, tenantID, reservationID)
	if err != nil {
		return nil, err
	}
	key := r.Key()

	var out *entity.Reservation
	err = uc.withRetry(ctx, "release", key, func() error {
		return uc.repos.Tx.Run(ctx, key, func(ctx context.Context, tx TxRepos) error {
			cur, err := activeReservation(ctx, tx, reservationID)
			if err != nil {
				return err
			}
			pos, err := tx.Positions.Get(ctx, key)
			if err != nil {
				return err
			}
			if pos.ReservedQuantity < cur.Quantity {
				return domain.NewError(domain.ErrConflict, "la reserva excede lo reservado en la posición").
					With("reservation_id", cur.ID).With("quantity", cur.Quantity).With("reserved", pos.ReservedQuantity)
			}
			now := uc.now()
			expected := pos.Version
			pos.ReservedQuantity -= cur.Quantity
			pos.AvailableQuantity += cur.Quantity
			pos.UpdatedAt = now
			if err := tx.Positions.Save(ctx, pos, expected); err != nil {
				return err
			}
			cur.Status = entity.ReservationReleased
			cur.UpdatedAt = now
			if err := tx.Reservations.Update(ctx, cur); err != nil {
				return err
			}
			out = cur
			return nil
		})
	})
	uc.metrics.RecordReservation("release", statusLabel(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Consume convierte la reserva en una salida (delivery) del ledger. Es el único camino por
// el que una reserva genera un movimiento.
func (uc *ReservationUseCase) Consume(ctx context.Context, in ConsumeInput) (*ConsumeResult, error) {
	r, err := uc.lookup(ctx, in.TenantID, in.ReservationID)
	if err != nil {
		return nil, err
	}
	req, err := uc.prepare(ctx, MoveInput{
		TenantID:         r.TenantID,
		ProductID:        r.ProductID,
		Type:             entity.MoveTypeDelivery,
		Quantity:         -r.Quantity,
		SourceLocationID: in.SourceLocationID,
		MoveDate:         in.MoveDate,
		CurrencyCode:     in.CurrencyCode,
		Reference:        firstNonEmpty(in.Reference, r.Reference),
		IdempotencyKey:   "reservation:" + r.ID,
		CreatedBy:        in.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	key := r.Key()

	var out *ConsumeResult
	err = uc.withRetry(ctx, "consume", key, func() error {
		return uc.repos.Tx.Run(ctx, key, func(ctx context.Context, tx TxRepos) error {
			cur, err := activeReservation(ctx, tx, in.ReservationID)
			if err != nil {
				return err
			}
			req.reservation = cur
			res, err := uc.post(ctx, tx, req)
			if err != nil {
				return err
			}
			moveID := res.Moves[0].ID
			cur.Status = entity.ReservationConsumed
			cur.ConsumedMoveID = &moveID
			cur.UpdatedAt = uc.now()
			if err := tx.Reservations.Update(ctx, cur); err != nil {
				return err
			}
			out = &ConsumeResult{Reservation: cur, Post: res}
			return nil
		})
	})
	uc.metrics.RecordReservation("consume", statusLabel(err))
	if err != nil {
		return nil, err
	}
	uc.observePost(req, out.Post)
	return out, nil
}

// GetReservation devuelve la reserva del tenant.
func (uc *ReservationUseCase) GetReservation(ctx context.Context, tenantID, reservationID string) (*entity.Reservation, error) {
	return uc.lookup(ctx, tenantID, reservationID)
}

// ListActiveReservations reservas activas del producto.
func (uc *ReservationUseCase) ListActiveReservations(ctx context.Context, tenantID, productID string) ([]*entity.Reservation, error) {
	if _, err := uc.requireProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return uc.repos.Reservations.ListActive(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID})
}

// lookup lee la reserva sin filtro de tenant y verifica el dueño.
func (uc *ReservationUseCase) lookup(ctx context.Context, tenantID, reservationID string) (*entity.Reservation, error) {
	if tenantID == "" || reservationID == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "tenant y reserva son obligatorios")
	}
	r, err := uc.repos.Reservations.GetByID(ctx, reservationID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if r == nil {
		return nil, domain.NewError(domain.ErrNotFound, "reserva no encontrada").With("reservation_id", reservationID)
	}
	if err := checkOwner(tenantID, r.TenantID, "reserva", reservationID); err != nil {
		uc.reportFatal("reservation_lookup", entity.PositionKey{TenantID: tenantID, ProductID: r.ProductID}, err)
		return nil, err
	}
	return r, nil
}

// activeReservation relee la reserva dentro de la tx y exige estado activo.
func activeReservation(ctx context.Context, tx TxRepos, id string) (*entity.Reservation, error) {
	r, err := tx.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, domain.NewError(domain.ErrNotFound, "reserva no encontrada").With("reservation_id", id)
	}
	if r.Status != entity.ReservationActive {
		return nil, domain.NewError(domain.ErrConflict, "la reserva no está activa").
			With("reservation_id", id).With("status", r.Status)
	}
	return r, nil
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInsufficientAvailable):
		return "insufficient_available"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	}
	return "error"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
