package repository

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// StockMoveRepository puerto del ledger append-only. No hay Update ni Delete.
type StockMoveRepository interface {
	Create(ctx context.Context, move *entity.StockMove) error
	ListByTransaction(ctx context.Context, tenantID, transactionID string) ([]*entity.StockMove, error)
	// ListByProduct devuelve movimientos con secuencia > afterSequence, ordenados por secuencia.
	// limit <= 0 significa sin límite.
	ListByProduct(ctx context.Context, key entity.PositionKey, afterSequence int64, limit int) ([]*entity.StockMove, error)
}

// IdempotencyRepository guarda las claves de idempotencia de posteo por tenant.
type IdempotencyRepository interface {
	// Get devuelve nil, nil si la clave no existe.
	Get(ctx context.Context, tenantID, key string) (*entity.IdempotencyRecord, error)
	// Create devuelve domain.ErrDuplicate si la clave ya existe.
	Create(ctx context.Context, rec *entity.IdempotencyRecord) error
}
