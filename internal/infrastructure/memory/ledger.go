package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var (
	_ repository.StockMoveRepository   = (*MoveRepo)(nil)
	_ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)
	_ repository.PositionRepository    = (*PositionRepo)(nil)
	_ repository.ValuationRepository   = (*ValuationRepo)(nil)
	_ repository.ReservationRepository = (*ReservationRepo)(nil)
)

// Repositorios fuera de transacción: cada escritura es una tx de una sola operación.

// MoveRepo acceso al ledger.
type MoveRepo struct{ s *Store }

// IdempotencyRepo acceso a claves de idempotencia.
type IdempotencyRepo struct{ s *Store }

// PositionRepo acceso a posiciones y saldos por ubicación.
type PositionRepo struct{ s *Store }

// ValuationRepo acceso a estado de costo, capas y auditoría.
type ValuationRepo struct{ s *Store }

// ReservationRepo acceso a reservas.
type ReservationRepo struct{ s *Store }

func (s *Store) Moves() *MoveRepo               { return &MoveRepo{s} }
func (s *Store) Idempotency() *IdempotencyRepo  { return &IdempotencyRepo{s} }
func (s *Store) Positions() *PositionRepo       { return &PositionRepo{s} }
func (s *Store) Valuations() *ValuationRepo     { return &ValuationRepo{s} }
func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{s} }

func (r *MoveRepo) Create(ctx context.Context, m *entity.StockMove) error {
	return r.s.auto(entity.PositionKey{TenantID: m.TenantID, ProductID: m.ProductID}, func(tx *memTx) error {
		return txMoves{tx}.Create(ctx, m)
	})
}

func (r *MoveRepo) ListByTransaction(_ context.Context, tenantID, transactionID string) ([]*entity.StockMove, error) {
	return r.s.listTransaction(tenantID, transactionID, entity.PositionKey{})
}

func (r *MoveRepo) ListByProduct(_ context.Context, key entity.PositionKey, afterSequence int64, limit int) ([]*entity.StockMove, error) {
	d := r.s.snapshot(key)
	return sliceMoves(d.moves, afterSequence, limit), nil
}

func (r *IdempotencyRepo) Get(_ context.Context, tenantID, key string) (*entity.IdempotencyRecord, error) {
	return r.s.getIdempotency(tenantID, key), nil
}

// Create registra una clave fuera de cualquier posición.
func (r *IdempotencyRepo) Create(_ context.Context, rec *entity.IdempotencyRecord) error {
	r.s.idxMu.Lock()
	defer r.s.idxMu.Unlock()
	k := idemKey(rec.TenantID, rec.Key)
	if _, ok := r.s.idem[k]; ok {
		return domain.ErrDuplicate
	}
	v := *rec
	r.s.idem[k] = &v
	return nil
}

func (r *PositionRepo) Get(ctx context.Context, key entity.PositionKey) (*entity.InventoryPosition, error) {
	return txPositions{r.s.begin(key)}.Get(ctx, key)
}

func (r *PositionRepo) Save(ctx context.Context, pos *entity.InventoryPosition, expectedVersion int64) error {
	return r.s.auto(pos.Key(), func(tx *memTx) error {
		return txPositions{tx}.Save(ctx, pos, expectedVersion)
	})
}

func (r *PositionRepo) ListByTenant(_ context.Context, tenantID string) ([]*entity.InventoryPosition, error) {
	return r.s.listPositions(tenantID), nil
}

func (r *PositionRepo) GetLocationBalance(ctx context.Context, key entity.PositionKey, locationID string) (*entity.LocationBalance, error) {
	return txPositions{r.s.begin(key)}.GetLocationBalance(ctx, key, locationID)
}

func (r *PositionRepo) SaveLocationBalance(ctx context.Context, b *entity.LocationBalance) error {
	return r.s.auto(entity.PositionKey{TenantID: b.TenantID, ProductID: b.ProductID}, func(tx *memTx) error {
		return txPositions{tx}.SaveLocationBalance(ctx, b)
	})
}

func (r *PositionRepo) ListLocationBalances(_ context.Context, key entity.PositionKey) ([]*entity.LocationBalance, error) {
	return sortedBalances(r.s.snapshot(key).balances), nil
}

func (r *ValuationRepo) GetState(_ context.Context, key entity.PositionKey) (*entity.ValuationState, error) {
	d := r.s.snapshot(key)
	if d.state == nil {
		return nil, nil
	}
	return d.state, nil
}

func (r *ValuationRepo) SaveState(ctx context.Context, st *entity.ValuationState) error {
	return r.s.auto(st.Key(), func(tx *memTx) error {
		return txValuations{tx}.SaveState(ctx, st)
	})
}

func (r *ValuationRepo) ListLayers(_ context.Context, key entity.PositionKey) ([]*entity.CostLayer, error) {
	return openLayers(r.s.snapshot(key).layers), nil
}

func (r *ValuationRepo) SaveLayers(ctx context.Context, layers []*entity.CostLayer) error {
	if len(layers) == 0 {
		return nil
	}
	key := entity.PositionKey{TenantID: layers[0].TenantID, ProductID: layers[0].ProductID}
	return r.s.auto(key, func(tx *memTx) error {
		return txValuations{tx}.SaveLayers(ctx, layers)
	})
}

func (r *ValuationRepo) AppendEntry(ctx context.Context, e *entity.ValuationEntry) error {
	return r.s.auto(entity.PositionKey{TenantID: e.TenantID, ProductID: e.ProductID}, func(tx *memTx) error {
		return txValuations{tx}.AppendEntry(ctx, e)
	})
}

func (r *ValuationRepo) ListEntries(_ context.Context, key entity.PositionKey, limit int) ([]*entity.ValuationEntry, error) {
	return latestEntries(r.s.snapshot(key).entries, limit), nil
}

func (r *ReservationRepo) GetByID(_ context.Context, id string) (*entity.Reservation, error) {
	return r.s.getReservation(id, entity.PositionKey{}), nil
}

func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	return r.s.auto(res.Key(), func(tx *memTx) error {
		return txReservations{tx}.Create(ctx, res)
	})
}

func (r *ReservationRepo) Update(ctx context.Context, res *entity.Reservation) error {
	return r.s.auto(res.Key(), func(tx *memTx) error {
		return txReservations{tx}.Update(ctx, res)
	})
}

func (r *ReservationRepo) ListActive(_ context.Context, key entity.PositionKey) ([]*entity.Reservation, error) {
	return activeReservations(r.s.snapshot(key).reservations), nil
}

// listTransaction busca los movimientos de una transacción vía índice. skip es la partición
// que el caller ya revisó.
func (s *Store) listTransaction(tenantID, transactionID string, skip entity.PositionKey) ([]*entity.StockMove, error) {
	s.idxMu.RLock()
	key, ok := s.txIndex[idemKey(tenantID, transactionID)]
	s.idxMu.RUnlock()
	if !ok || key == skip {
		return []*entity.StockMove{}, nil
	}
	out := filterTransaction(s.snapshot(key).moves, tenantID, transactionID)
	if out == nil {
		out = []*entity.StockMove{}
	}
	return out, nil
}

func (s *Store) getIdempotency(tenantID, key string) *entity.IdempotencyRecord {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	rec, ok := s.idem[idemKey(tenantID, key)]
	if !ok {
		return nil
	}
	v := *rec
	return &v
}

func (s *Store) getReservation(id string, skip entity.PositionKey) *entity.Reservation {
	s.idxMu.RLock()
	key, ok := s.resIndex[id]
	s.idxMu.RUnlock()
	if !ok || key == skip {
		return nil
	}
	if r, ok := s.snapshot(key).reservations[id]; ok {
		return r
	}
	return nil
}

func (s *Store) listPositions(tenantID string) []*entity.InventoryPosition {
	var out []*entity.InventoryPosition
	s.parts.Range(func(k, v any) bool {
		key := k.(entity.PositionKey)
		if key.TenantID != tenantID {
			return true
		}
		p := v.(*partition)
		p.mu.Lock()
		if p.data.position != nil {
			c := *p.data.position
			out = append(out, &c)
		}
		p.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	if out == nil {
		out = []*entity.InventoryPosition{}
	}
	return out
}
