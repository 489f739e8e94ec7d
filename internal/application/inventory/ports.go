package inventory

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// TxRepos repositorios atados a una transacción sobre una única posición (tenant, producto).
type TxRepos struct {
	Moves        repository.StockMoveRepository
	Idempotency  repository.IdempotencyRepository
	Positions    repository.PositionRepository
	Valuations   repository.ValuationRepository
	Reservations repository.ReservationRepository
}

// TxRunner ejecuta fn de forma atómica sobre la partición key: o se aplican todas las
// escrituras o ninguna. Un conflicto de versión se reporta como domain.ErrConcurrentModification.
type TxRunner interface {
	Run(ctx context.Context, key entity.PositionKey, fn func(ctx context.Context, repos TxRepos) error) error
}

// IncomingSupply señal externa de abastecimiento en tránsito (órdenes de compra abiertas, etc.).
type IncomingSupply interface {
	Incoming(ctx context.Context, tenantID, productID string, warehouseID *string) (int64, error)
}

// SuggestionPublisher publica sugerencias de reposición a otros sistemas.
type SuggestionPublisher interface {
	Publish(ctx context.Context, suggestions []*entity.ReplenishmentSuggestion) error
}

// Repositories dependencias del núcleo. Las lecturas fuera de transacción usan los
// repositorios de este struct; las mutaciones pasan siempre por Tx.
type Repositories struct {
	Tx           TxRunner
	Products     repository.ProductRepository
	Locations    repository.LocationRepository
	Tenants      repository.TenantRepository
	Moves        repository.StockMoveRepository
	Positions    repository.PositionRepository
	Valuations   repository.ValuationRepository
	Settings     repository.ValuationSettingRepository
	Conversions  repository.UomConversionRepository
	Reservations repository.ReservationRepository
	Rules        repository.ReorderRuleRepository
}
