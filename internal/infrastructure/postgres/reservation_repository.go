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

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

// ReservationRepo reservas sobre PostgreSQL.
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

const reservationColumns = `id, tenant_id, product_id, quantity, status, reference, consumed_move_id, created_at, updated_at`

func scanReservation(row pgx.Row) (*entity.Reservation, error) {
	var res entity.Reservation
	var status string
	if err := row.Scan(&res.ID, &res.TenantID, &res.ProductID, &res.Quantity, &status, &res.Reference,
		&res.ConsumedMoveID, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Status = entity.ReservationStatus(status)
	return &res, nil
}

// GetByID no filtra por tenant. nil, nil si no existe.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// Create inserta la reserva; id repetido = domain.ErrDuplicate.
func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	query := `INSERT INTO reservations (` + reservationColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query, res.ID, res.TenantID, res.ProductID, res.Quantity, string(res.Status),
		res.Reference, res.ConsumedMoveID, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// Update cambia estado y movimiento de consumo.
func (r *ReservationRepo) Update(ctx context.Context, res *entity.Reservation) error {
	query := `UPDATE reservations SET status = $3, consumed_move_id = $4, updated_at = $5
		WHERE id = $1 AND tenant_id = $2`
	tag, err := r.q.Exec(ctx, query, res.ID, res.TenantID, string(res.Status), res.ConsumedMoveID, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListActive reservas activas de la posición, más antiguas primero.
func (r *ReservationRepo) ListActive(ctx context.Context, key entity.PositionKey) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE tenant_id = $1 AND product_id = $2 AND status = 'active' ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, key.TenantID, key.ProductID)
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}
	defer rows.Close()
	list := make([]*entity.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}
