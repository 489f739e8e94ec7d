package repository

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// ValuationRepository puerto del estado de costo, capas FIFO y auditoría de valoración.
type ValuationRepository interface {
	// GetState devuelve nil, nil si el producto aún no tiene valoración.
	GetState(ctx context.Context, key entity.PositionKey) (*entity.ValuationState, error)
	SaveState(ctx context.Context, state *entity.ValuationState) error
	// ListLayers devuelve las capas con cantidad pendiente > 0 ordenadas por secuencia.
	ListLayers(ctx context.Context, key entity.PositionKey) ([]*entity.CostLayer, error)
	// SaveLayers inserta capas nuevas y actualiza la cantidad pendiente de las existentes.
	SaveLayers(ctx context.Context, layers []*entity.CostLayer) error
	AppendEntry(ctx context.Context, entry *entity.ValuationEntry) error
	ListEntries(ctx context.Context, key entity.PositionKey, limit int) ([]*entity.ValuationEntry, error)
}

// ValuationSettingRepository puerto de configuración de métodos de valoración.
type ValuationSettingRepository interface {
	// GetByID incluye configuraciones eliminadas; nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.ValuationSetting, error)
	// GetActive devuelve la configuración activa del alcance (scopeID nil para tenant); nil, nil si no hay.
	GetActive(ctx context.Context, tenantID string, scope entity.ValuationScope, scopeID *string) (*entity.ValuationSetting, error)
	// Create devuelve domain.ErrDuplicate si ya hay una activa para el mismo alcance.
	Create(ctx context.Context, setting *entity.ValuationSetting) error
	SoftDelete(ctx context.Context, tenantID, id string) error
	ListActive(ctx context.Context, tenantID string) ([]*entity.ValuationSetting, error)
}
