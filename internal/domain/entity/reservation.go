package entity

import "time"

// ReservationStatus estado de una reserva.
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationReleased ReservationStatus = "released"
	ReservationConsumed ReservationStatus = "consumed"
)

// Reservation retiene cantidad disponible sin postear un movimiento en el ledger.
type Reservation struct {
	ID             string
	TenantID       string
	ProductID      string
	Quantity       int64
	Status         ReservationStatus
	Reference      string
	ConsumedMoveID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Key devuelve la posición afectada por la reserva.
func (r *Reservation) Key() PositionKey {
	return PositionKey{TenantID: r.TenantID, ProductID: r.ProductID}
}
