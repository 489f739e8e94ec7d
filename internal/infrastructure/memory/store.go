package memory

import (
	"slices"
	"sync"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// Store implementación en memoria de todos los puertos del núcleo. Cada (tenant, producto)
// es una partición independiente con su propio mutex y versión; una transacción trabaja
// sobre una copia y al confirmar verifica que la versión no haya cambiado (optimista).
// Útil para desarrollo (LEDGER_STORE=memory) y para los tests de casos de uso.
type Store struct {
	// catálogos y configuración
	mu          sync.RWMutex
	tenants     map[string]*entity.Tenant
	products    map[string]*entity.Product
	locations   map[string]*entity.Location
	settings    map[string]*entity.ValuationSetting
	conversions map[string]*entity.UomConversion
	rules       map[string]*entity.ReorderRule

	parts sync.Map // entity.PositionKey -> *partition

	// índices globales; se toman siempre después del mutex de una partición
	idxMu    sync.RWMutex
	idem     map[string]*entity.IdempotencyRecord
	txIndex  map[string]entity.PositionKey
	resIndex map[string]entity.PositionKey
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		tenants:     make(map[string]*entity.Tenant),
		products:    make(map[string]*entity.Product),
		locations:   make(map[string]*entity.Location),
		settings:    make(map[string]*entity.ValuationSetting),
		conversions: make(map[string]*entity.UomConversion),
		rules:       make(map[string]*entity.ReorderRule),
		idem:        make(map[string]*entity.IdempotencyRecord),
		txIndex:     make(map[string]entity.PositionKey),
		resIndex:    make(map[string]entity.PositionKey),
	}
}

type partition struct {
	mu   sync.Mutex
	data *partitionData
}

// partitionData estado de una posición. Se reemplaza completo al confirmar una tx.
type partitionData struct {
	position     *entity.InventoryPosition // nil = aún no persistida
	balances     map[string]*entity.LocationBalance
	moves        []*entity.StockMove // orden de secuencia
	state        *entity.ValuationState
	layers       map[string]*entity.CostLayer
	entries      []*entity.ValuationEntry
	reservations map[string]*entity.Reservation
}

func newPartitionData() *partitionData {
	return &partitionData{
		balances:     make(map[string]*entity.LocationBalance),
		layers:       make(map[string]*entity.CostLayer),
		reservations: make(map[string]*entity.Reservation),
	}
}

func (d *partitionData) version() int64 {
	if d.position == nil {
		return 0
	}
	return d.position.Version
}

// clone copia profunda de lo mutable. Movimientos y registros de valoración son inmutables:
// se comparten y Clip obliga a que un append reserve memoria nueva.
func (d *partitionData) clone() *partitionData {
	c := newPartitionData()
	if d.position != nil {
		p := *d.position
		c.position = &p
	}
	for k, b := range d.balances {
		v := *b
		c.balances[k] = &v
	}
	c.moves = slices.Clip(d.moves)
	if d.state != nil {
		c.state = copyState(d.state)
	}
	for k, l := range d.layers {
		v := *l
		c.layers[k] = &v
	}
	c.entries = slices.Clip(d.entries)
	for k, r := range d.reservations {
		c.reservations[k] = copyReservation(r)
	}
	return c
}

func (s *Store) partition(key entity.PositionKey) *partition {
	if p, ok := s.parts.Load(key); ok {
		return p.(*partition)
	}
	p, _ := s.parts.LoadOrStore(key, &partition{data: newPartitionData()})
	return p.(*partition)
}

// snapshot copia el estado confirmado de la partición.
func (s *Store) snapshot(key entity.PositionKey) *partitionData {
	p := s.partition(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.clone()
}

func idemKey(tenantID, key string) string {
	return tenantID + "\x00" + key
}

func copyState(s *entity.ValuationState) *entity.ValuationState {
	v := *s
	if s.StandardCost != nil {
		c := *s.StandardCost
		v.StandardCost = &c
	}
	return &v
}

func copyReservation(r *entity.Reservation) *entity.Reservation {
	v := *r
	if r.ConsumedMoveID != nil {
		id := *r.ConsumedMoveID
		v.ConsumedMoveID = &id
	}
	return &v
}
