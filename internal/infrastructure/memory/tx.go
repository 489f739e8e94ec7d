package memory

import (
	"context"
	"sort"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

var _ appinv.TxRunner = (*Store)(nil)

// Run ejecuta fn sobre una copia de la partición key y la confirma si la versión sigue
// siendo la leída al inicio; si no, devuelve domain.ErrConcurrentModification.
func (s *Store) Run(ctx context.Context, key entity.PositionKey, fn func(ctx context.Context, repos appinv.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := s.begin(key)
	if err := fn(ctx, tx.repos()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

// memTx transacción optimista sobre una partición.
type memTx struct {
	s     *Store
	key   entity.PositionKey
	part  *partition
	base  int64
	work  *partitionData
	dirty bool

	newMoves []*entity.StockMove
	newIdem  []*entity.IdempotencyRecord
	newRes   []string
}

func (s *Store) begin(key entity.PositionKey) *memTx {
	p := s.partition(key)
	p.mu.Lock()
	work := p.data.clone()
	p.mu.Unlock()
	return &memTx{s: s, key: key, part: p, base: work.version(), work: work}
}

// auto ejecuta fn en una tx de una sola operación (repositorios fuera de transacción).
func (s *Store) auto(key entity.PositionKey, fn func(tx *memTx) error) error {
	tx := s.begin(key)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (tx *memTx) repos() appinv.TxRepos {
	return appinv.TxRepos{
		Moves:        txMoves{tx},
		Idempotency:  txIdempotency{tx},
		Positions:    txPositions{tx},
		Valuations:   txValuations{tx},
		Reservations: txReservations{tx},
	}
}

func (tx *memTx) commit() error {
	if !tx.dirty {
		return nil
	}
	p := tx.part
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur := p.data.version(); cur != tx.base {
		return domain.NewError(domain.ErrConcurrentModification, "la posición cambió durante la transacción").
			With("position", tx.key.String()).With("expected_version", tx.base).With("current_version", cur)
	}

	s := tx.s
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	for _, r := range tx.newIdem {
		if _, ok := s.idem[idemKey(r.TenantID, r.Key)]; ok {
			return domain.NewError(domain.ErrConcurrentModification, "clave de idempotencia confirmada en paralelo").
				With("idempotency_key", r.Key)
		}
	}
	for _, r := range tx.newIdem {
		s.idem[idemKey(r.TenantID, r.Key)] = r
	}
	for _, m := range tx.newMoves {
		s.txIndex[idemKey(m.TenantID, m.TransactionID)] = tx.key
	}
	for _, id := range tx.newRes {
		s.resIndex[id] = tx.key
	}
	p.data = tx.work
	return nil
}

func (tx *memTx) checkKey(key entity.PositionKey) error {
	if key != tx.key {
		return domain.NewError(domain.ErrTenantMismatch, "acceso fuera de la partición de la transacción").
			With("partition", tx.key.String()).With("requested", key.String())
	}
	return nil
}

// ─── movimientos ───────────────────────────────────────────────────────────────

type txMoves struct{ tx *memTx }

func (r txMoves) Create(_ context.Context, m *entity.StockMove) error {
	if err := r.tx.checkKey(entity.PositionKey{TenantID: m.TenantID, ProductID: m.ProductID}); err != nil {
		return err
	}
	v := *m
	r.tx.work.moves = append(r.tx.work.moves, &v)
	r.tx.newMoves = append(r.tx.newMoves, &v)
	r.tx.dirty = true
	return nil
}

func (r txMoves) ListByTransaction(_ context.Context, tenantID, transactionID string) ([]*entity.StockMove, error) {
	if out := filterTransaction(r.tx.work.moves, tenantID, transactionID); len(out) > 0 {
		return out, nil
	}
	return r.tx.s.listTransaction(tenantID, transactionID, r.tx.key)
}

func (r txMoves) ListByProduct(_ context.Context, key entity.PositionKey, afterSequence int64, limit int) ([]*entity.StockMove, error) {
	if err := r.tx.checkKey(key); err != nil {
		return nil, err
	}
	return sliceMoves(r.tx.work.moves, afterSequence, limit), nil
}

func filterTransaction(moves []*entity.StockMove, tenantID, transactionID string) []*entity.StockMove {
	var out []*entity.StockMove
	for _, m := range moves {
		if m.TenantID == tenantID && m.TransactionID == transactionID {
			v := *m
			out = append(out, &v)
		}
	}
	return out
}

func sliceMoves(moves []*entity.StockMove, afterSequence int64, limit int) []*entity.StockMove {
	out := make([]*entity.StockMove, 0)
	for _, m := range moves {
		if m.Sequence <= afterSequence {
			continue
		}
		v := *m
		out = append(out, &v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ─── idempotencia ──────────────────────────────────────────────────────────────

type txIdempotency struct{ tx *memTx }

func (r txIdempotency) Get(_ context.Context, tenantID, key string) (*entity.IdempotencyRecord, error) {
	for _, rec := range r.tx.newIdem {
		if rec.TenantID == tenantID && rec.Key == key {
			v := *rec
			return &v, nil
		}
	}
	return r.tx.s.getIdempotency(tenantID, key), nil
}

func (r txIdempotency) Create(_ context.Context, rec *entity.IdempotencyRecord) error {
	if existing, _ := r.Get(context.Background(), rec.TenantID, rec.Key); existing != nil {
		return domain.ErrDuplicate
	}
	v := *rec
	r.tx.newIdem = append(r.tx.newIdem, &v)
	r.tx.dirty = true
	return nil
}

// ─── posiciones ────────────────────────────────────────────────────────────────

type txPositions struct{ tx *memTx }

func (r txPositions) Get(_ context.Context, key entity.PositionKey) (*entity.InventoryPosition, error) {
	if err := r.tx.checkKey(key); err != nil {
		return nil, err
	}
	if r.tx.work.position == nil {
		return entity.NewInventoryPosition(key), nil
	}
	v := *r.tx.work.position
	return &v, nil
}

func (r txPositions) Save(_ context.Context, pos *entity.InventoryPosition, expectedVersion int64) error {
	if err := r.tx.checkKey(pos.Key()); err != nil {
		return err
	}
	if pos.AvailableQuantity < 0 || pos.ReservedQuantity < 0 {
		return domain.NewError(domain.ErrInvalidInput, "saldos negativos").
			With("available", pos.AvailableQuantity).With("reserved", pos.ReservedQuantity)
	}
	if cur := r.tx.work.version(); cur != expectedVersion {
		return domain.NewError(domain.ErrConcurrentModification, "versión de la posición desactualizada").
			With("position", pos.Key().String()).With("expected_version", expectedVersion).With("current_version", cur)
	}
	pos.Version = expectedVersion + 1
	v := *pos
	r.tx.work.position = &v
	r.tx.dirty = true
	return nil
}

func (r txPositions) ListByTenant(_ context.Context, tenantID string) ([]*entity.InventoryPosition, error) {
	return r.tx.s.listPositions(tenantID), nil
}

func (r txPositions) GetLocationBalance(_ context.Context, key entity.PositionKey, locationID string) (*entity.LocationBalance, error) {
	if err := r.tx.checkKey(key); err != nil {
		return nil, err
	}
	if b, ok := r.tx.work.balances[locationID]; ok {
		v := *b
		return &v, nil
	}
	return &entity.LocationBalance{TenantID: key.TenantID, ProductID: key.ProductID, LocationID: locationID}, nil
}

func (r txPositions) SaveLocationBalance(_ context.Context, b *entity.LocationBalance) error {
	if err := r.tx.checkKey(entity.PositionKey{TenantID: b.TenantID, ProductID: b.ProductID}); err != nil {
		return err
	}
	if b.Quantity < 0 {
		return domain.NewError(domain.ErrInvalidInput, "saldo de ubicación negativo").With("location_id", b.LocationID)
	}
	v := *b
	r.tx.work.balances[b.LocationID] = &v
	r.tx.dirty = true
	return nil
}

func (r txPositions) ListLocationBalances(_ context.Context, key entity.PositionKey) ([]*entity.LocationBalance, error) {
	if err := r.tx.checkKey(key); err != nil {
		return nil, err
	}
	return sortedBalances(r.tx.work.balances), nil
}

func sortedBalances(m map[string]*entity.LocationBalance) []*entity.LocationBalance {
	out := make([]*entity.LocationBalance, 0, len(m))
	for _, b := range m {
		v := *b
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out
}

// ─── valoración ────────────────────────────────────────────────────────────────

type txValuations struct{ tx *memTx }

func (r txValuations) GetState(_ context.Context, key entity.PositionKey) (*entity.ValuationState, error) {
	if err := r.tx.checkKey(key); err != nil {
		return nil, err
	}
	if r.tx.work.state == nil {
		return nil, nil
	}
	return copyState(r.tx.work.state), nil
}

func (r txValuations) SaveState(_ context.Context, st *entity.ValuationState) error {
	if err := r.tx.checkKey(st.Key()); err != nil {
		return err
	}
	r.tx.work.state = copyState(st)
	r.tx.dirty = true
	return nil
}

func (r txValuations) ListLayers(_ context.Context, key entity.PositionKey) ([]*entity.CostLayer, error) {
	if err := r.tx.checkKey(key); err != nil {
		return nil, err
	}
	return openLayers(r.tx.work.layers), nil
}

func (r txValuations) SaveLayers(_ context.Context, layers []*entity.CostLayer) error {
	for _, l := range layers {
		if err := r.tx.checkKey(entity.PositionKey{TenantID: l.TenantID, ProductID: l.ProductID}); err != nil {
			return err
		}
		if l.RemainingQuantity < 0 || l.RemainingQuantity > l.OriginalQuantity {
			return domain.NewError(domain.ErrInvalidInput, "cantidad pendiente de capa fuera de rango").With("layer_id", l.ID)
		}
		v := *l
		r.tx.work.layers[l.ID] = &v
	}
	r.tx.dirty = true
	return nil
}

func (r txValuations) AppendEntry(_ context.Context, e *entity.ValuationEntry) error {
	if err := r.tx.checkKey(entity.PositionKey{TenantID: e.TenantID, ProductID: e.ProductID}); err != nil {
		return err
	}
	v := *e
	r.tx.work.entries = append(r.tx.work.entries, &v)
	r.tx.dirty = true
	return nil
}

func (r txValuations) ListEntries(_ context.Context, key entity.PositionKey, limit int) ([]*entity.ValuationEntry, error) {
	if err := r.tx.checkKey(key); err != nil {
		return nil, err
	}
	return latestEntries(r.tx.work.entries, limit), nil
}

// openLayers capas con pendiente > 0 en orden de llegada.
func openLayers(m map[string]*entity.CostLayer) []*entity.CostLayer {
	out := make([]*entity.CostLayer, 0, len(m))
	for _, l := range m {
		if l.RemainingQuantity > 0 {
			v := *l
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// latestEntries más recientes primero.
func latestEntries(entries []*entity.ValuationEntry, limit int) []*entity.ValuationEntry {
	out := make([]*entity.ValuationEntry, 0)
	for i := len(entries) - 1; i >= 0; i-- {
		v := *entries[i]
		out = append(out, &v)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ─── reservas ──────────────────────────────────────────────────────────────────

type txReservations struct{ tx *memTx }

func (r txReservations) GetByID(_ context.Context, id string) (*entity.Reservation, error) {
	if res, ok := r.tx.work.reservations[id]; ok {
		return copyReservation(res), nil
	}
	return r.tx.s.getReservation(id, r.tx.key), nil
}

func (r txReservations) Create(_ context.Context, res *entity.Reservation) error {
	if err := r.tx.checkKey(res.Key()); err != nil {
		return err
	}
	if _, ok := r.tx.work.reservations[res.ID]; ok {
		return domain.ErrDuplicate
	}
	r.tx.work.reservations[res.ID] = copyReservation(res)
	r.tx.newRes = append(r.tx.newRes, res.ID)
	r.tx.dirty = true
	return nil
}

func (r txReservations) Update(_ context.Context, res *entity.Reservation) error {
	if err := r.tx.checkKey(res.Key()); err != nil {
		return err
	}
	if _, ok := r.tx.work.reservations[res.ID]; !ok {
		return domain.ErrNotFound
	}
	r.tx.work.reservations[res.ID] = copyReservation(res)
	r.tx.dirty = true
	return nil
}

func (r txReservations) ListActive(_ context.Context, key entity.PositionKey) ([]*entity.Reservation, error) {
	if err := r.tx.checkKey(key); err != nil {
		return nil, err
	}
	return activeReservations(r.tx.work.reservations), nil
}

func activeReservations(m map[string]*entity.Reservation) []*entity.Reservation {
	out := make([]*entity.Reservation, 0)
	for _, r := range m {
		if r.Status == entity.ReservationActive {
			out = append(out, copyReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
