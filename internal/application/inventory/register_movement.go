package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
)

// LedgerUseCase postea movimientos en el ledger y aplica su efecto sobre la posición y la
// valoración en una sola transacción por (tenant, producto).
type LedgerUseCase struct {
	*core
}

// MoveInput entrada de PostMove.
// Receipt: cantidad > 0 y costo (unitario o total divisible). Delivery: cantidad < 0.
// Adjustment: cantidad != 0 y motivo. Transfer: cantidad > 0, origen y destino distintos.
type MoveInput struct {
	TenantID              string
	ProductID             string
	Type                  entity.MoveType
	Quantity              int64
	UnitCost              *int64
	TotalCost             *int64
	SourceLocationID      *string
	DestinationLocationID *string
	MoveDate              time.Time // cero = ahora
	CurrencyCode          string    // vacío = moneda por defecto
	Reason                string
	Reference             string
	IdempotencyKey        string
	CreatedBy             string
}

// PostResult resultado de un posteo. En un replay por clave de idempotencia devuelve los
// movimientos originales con Replayed = true.
type PostResult struct {
	TransactionID string
	Moves         []*entity.StockMove
	Position      *entity.InventoryPosition
	Cogs          int64
	Variance      int64
	Replayed      bool
}

// postRequest entrada validada y enriquecida, lista para aplicar dentro de la tx.
type postRequest struct {
	in          MoveInput
	key         entity.PositionKey
	method      entity.ValuationMethod
	unitCost    *int64 // costo resuelto para entradas
	fingerprint string
	reservation *entity.Reservation
}

// PostMove valida el movimiento, lo agrega al ledger y actualiza posición, saldos por
// ubicación y valoración. Los conflictos de versión se reintentan de forma acotada.
func (uc *LedgerUseCase) PostMove(ctx context.Context, in MoveInput) (*PostResult, error) {
	req, err := uc.prepare(ctx, in)
	if err != nil {
		uc.metrics.RecordMoveRejected(rejectReason(err))
		return nil, err
	}
	var res *PostResult
	err = uc.withRetry(ctx, "post_move", req.key, func() error {
		return uc.repos.Tx.Run(ctx, req.key, func(ctx context.Context, tx TxRepos) error {
			r, err := uc.post(ctx, tx, req)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
	})
	if err != nil {
		uc.metrics.RecordMoveRejected(rejectReason(err))
		return nil, err
	}
	uc.observePost(req, res)
	return res, nil
}

func (c *core) observePost(req *postRequest, res *PostResult) {
	if res.Replayed {
		c.metrics.RecordReplay()
		c.log.Debug().Str("position", req.key.String()).Str("idempotency_key", req.in.IdempotencyKey).
			Msg("posteo repetido, se devuelve el resultado original")
		return
	}
	c.metrics.RecordMovePosted(string(req.in.Type))
	c.log.Debug().Str("position", req.key.String()).Str("type", string(req.in.Type)).
		Int64("quantity", req.in.Quantity).Int64("cogs", res.Cogs).Str("transaction_id", res.TransactionID).
		Msg("movimiento posteado")
}

// prepare valida campos, signo, costos, moneda y pertenencia de producto y ubicaciones.
func (c *core) prepare(ctx context.Context, in MoveInput) (*postRequest, error) {
	fp := fingerprint(in)
	if err := validateMove(&in); err != nil {
		return nil, err
	}
	if in.CurrencyCode == "" {
		in.CurrencyCode = c.opts.DefaultCurrency
	}
	in.CurrencyCode = strings.ToUpper(strings.TrimSpace(in.CurrencyCode))
	if _, err := currency.ParseISO(in.CurrencyCode); err != nil {
		return nil, domain.NewError(domain.ErrInvalidInput, "código de moneda inválido").With("currency", in.CurrencyCode)
	}
	if in.MoveDate.IsZero() {
		in.MoveDate = c.now()
	}

	p, err := c.requireProduct(ctx, in.TenantID, in.ProductID)
	if err != nil {
		return nil, err
	}
	if err := c.requireLocation(ctx, in.TenantID, in.SourceLocationID); err != nil {
		return nil, err
	}
	if err := c.requireLocation(ctx, in.TenantID, in.DestinationLocationID); err != nil {
		return nil, err
	}

	req := &postRequest{
		in:          in,
		key:         entity.PositionKey{TenantID: in.TenantID, ProductID: in.ProductID},
		fingerprint: fp,
	}
	if in.Type == entity.MoveTypeTransfer {
		return req, nil
	}
	if req.method, err = c.resolveMethod(ctx, p); err != nil {
		return nil, err
	}
	if in.Quantity > 0 {
		req.unitCost, err = incomingUnitCost(in)
		if err != nil {
			return nil, err
		}
	}
	return req, nil
}

// validateMove reglas estructurales independientes del estado.
func validateMove(in *MoveInput) error {
	if in.TenantID == "" || in.ProductID == "" {
		return domain.NewError(domain.ErrInvalidInput, "tenant y producto son obligatorios")
	}
	if in.IdempotencyKey == "" {
		return domain.NewError(domain.ErrInvalidInput, "la clave de idempotencia es obligatoria")
	}
	src, dst := in.SourceLocationID, in.DestinationLocationID
	switch in.Type {
	case entity.MoveTypeReceipt:
		if in.Quantity <= 0 {
			return domain.NewError(domain.ErrInvalidInput, "una entrada debe tener cantidad positiva").With("quantity", in.Quantity)
		}
		if src != nil {
			return domain.NewError(domain.ErrInvalidInput, "una entrada no lleva ubicación de origen")
		}
		if in.UnitCost == nil && in.TotalCost == nil {
			return domain.NewError(domain.ErrCostInconsistency, "una entrada requiere costo unitario o total")
		}
	case entity.MoveTypeDelivery:
		if in.Quantity >= 0 {
			return domain.NewError(domain.ErrInvalidInput, "una salida debe tener cantidad negativa").With("quantity", in.Quantity)
		}
		if dst != nil {
			return domain.NewError(domain.ErrInvalidInput, "una salida no lleva ubicación de destino")
		}
	case entity.MoveTypeAdjustment:
		if in.Quantity == 0 {
			return domain.NewError(domain.ErrInvalidInput, "un ajuste no puede ser cero")
		}
		if strings.TrimSpace(in.Reason) == "" {
			return domain.NewError(domain.ErrInvalidInput, "un ajuste requiere motivo")
		}
		if (in.Quantity > 0 && src != nil) || (in.Quantity < 0 && dst != nil) {
			return domain.NewError(domain.ErrInvalidInput, "la ubicación no corresponde al signo del ajuste").
				With("quantity", in.Quantity)
		}
	case entity.MoveTypeTransfer:
		if in.Quantity <= 0 {
			return domain.NewError(domain.ErrInvalidInput, "un traslado debe tener cantidad positiva").With("quantity", in.Quantity)
		}
		if src == nil || dst == nil {
			return domain.NewError(domain.ErrInvalidInput, "un traslado requiere ubicación de origen y destino")
		}
		if *src == *dst {
			return domain.NewError(domain.ErrInvalidInput, "origen y destino del traslado son iguales").With("location_id", *src)
		}
		if in.UnitCost != nil || in.TotalCost != nil {
			return domain.NewError(domain.ErrInvalidInput, "un traslado no lleva costo")
		}
	default:
		return domain.NewError(domain.ErrInvalidInput, "tipo de movimiento inválido").With("type", in.Type)
	}

	if in.UnitCost != nil && *in.UnitCost < 0 {
		return domain.NewError(domain.ErrCostInconsistency, "costo unitario negativo").With("unit_cost", *in.UnitCost)
	}
	candidate := entity.StockMove{Quantity: in.Quantity, UnitCost: in.UnitCost, TotalCost: in.TotalCost}
	if !candidate.CostConsistent() {
		return domain.NewError(domain.ErrCostInconsistency, "total_cost debe ser quantity × unit_cost").
			With("quantity", in.Quantity).With("unit_cost", *in.UnitCost).With("total_cost", *in.TotalCost)
	}
	return nil
}

// incomingUnitCost costo unitario de una entrada: el informado o total/cantidad exacto.
// nil en ajustes sin costo (se valoran al costo vigente del libro).
func incomingUnitCost(in MoveInput) (*int64, error) {
	switch {
	case in.UnitCost != nil:
		u := *in.UnitCost
		return &u, nil
	case in.TotalCost != nil:
		if *in.TotalCost%in.Quantity != 0 || *in.TotalCost < 0 {
			return nil, domain.NewError(domain.ErrCostInconsistency, "total_cost no es divisible por la cantidad").
				With("quantity", in.Quantity).With("total_cost", *in.TotalCost)
		}
		u := *in.TotalCost / in.Quantity
		return &u, nil
	}
	return nil, nil
}

// fingerprint hash del contenido de la solicitud tal como llegó, para detectar claves reutilizadas.
func fingerprint(in MoveInput) string {
	opt := func(v *int64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprint(*v)
	}
	str := func(v *string) string {
		if v == nil {
			return "-"
		}
		return *v
	}
	date := ""
	if !in.MoveDate.IsZero() {
		date = in.MoveDate.UTC().Format(time.RFC3339Nano)
	}
	raw := strings.Join([]string{
		in.TenantID, in.ProductID, string(in.Type), fmt.Sprint(in.Quantity),
		opt(in.UnitCost), opt(in.TotalCost), str(in.SourceLocationID), str(in.DestinationLocationID),
		date, strings.ToUpper(in.CurrencyCode), in.Reason, in.Reference,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// post aplica la solicitud dentro de la tx de la partición.
func (c *core) post(ctx context.Context, tx TxRepos, req *postRequest) (*PostResult, error) {
	in := req.in
	rec, err := tx.Idempotency.Get(ctx, in.TenantID, in.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return c.replay(ctx, tx, req, rec)
	}

	pos, err := tx.Positions.Get(ctx, req.key)
	if err != nil {
		return nil, err
	}
	expected := pos.Version
	now := c.now()
	res := &PostResult{TransactionID: uuid.New().String()}

	if in.Type == entity.MoveTypeTransfer {
		res.Moves, err = c.applyTransfer(ctx, tx, req, pos, res.TransactionID, now)
	} else {
		var move *entity.StockMove
		move, err = c.applyValued(ctx, tx, req, pos, res, now)
		res.Moves = []*entity.StockMove{move}
	}
	if err != nil {
		return nil, err
	}
	if in.Quantity < 0 && in.SourceLocationID == nil {
		if err := checkLocated(ctx, tx, req.key, pos); err != nil {
			return nil, err
		}
	}

	pos.UpdatedAt = now
	if err := tx.Positions.Save(ctx, pos, expected); err != nil {
		return nil, err
	}
	for _, m := range res.Moves {
		if err := tx.Moves.Create(ctx, m); err != nil {
			return nil, err
		}
	}
	err = tx.Idempotency.Create(ctx, &entity.IdempotencyRecord{
		TenantID:      in.TenantID,
		Key:           in.IdempotencyKey,
		TransactionID: res.TransactionID,
		Fingerprint:   req.fingerprint,
		Cogs:          res.Cogs,
		Variance:      res.Variance,
		CreatedAt:     now,
	})
	if errors.Is(err, domain.ErrDuplicate) {
		// otra solicitud con la misma clave ganó la carrera: el reintento la verá como replay
		return nil, domain.NewError(domain.ErrConcurrentModification, "clave de idempotencia registrada en paralelo").
			With("idempotency_key", in.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}
	res.Position = pos
	return res, nil
}

func (c *core) replay(ctx context.Context, tx TxRepos, req *postRequest, rec *entity.IdempotencyRecord) (*PostResult, error) {
	if rec.Fingerprint != req.fingerprint {
		return nil, domain.NewError(domain.ErrIdempotencyConflict, "la clave ya se usó con otro movimiento").
			With("idempotency_key", rec.Key).With("transaction_id", rec.TransactionID)
	}
	moves, err := tx.Moves.ListByTransaction(ctx, rec.TenantID, rec.TransactionID)
	if err != nil {
		return nil, err
	}
	pos, err := tx.Positions.Get(ctx, req.key)
	if err != nil {
		return nil, err
	}
	return &PostResult{
		TransactionID: rec.TransactionID,
		Moves:         moves,
		Position:      pos,
		Cogs:          rec.Cogs,
		Variance:      rec.Variance,
		Replayed:      true,
	}, nil
}

// applyValued entrada o salida con efecto en la valoración.
func (c *core) applyValued(ctx context.Context, tx TxRepos, req *postRequest, pos *entity.InventoryPosition, res *PostResult, now time.Time) (*entity.StockMove, error) {
	in := req.in
	seq := pos.LastSequence + 1
	move := &entity.StockMove{
		ID:                    uuid.New().String(),
		TransactionID:         res.TransactionID,
		TenantID:              in.TenantID,
		ProductID:             in.ProductID,
		Type:                  in.Type,
		Sequence:              seq,
		Quantity:              in.Quantity,
		UnitCost:              in.UnitCost,
		TotalCost:             in.TotalCost,
		SourceLocationID:      in.SourceLocationID,
		DestinationLocationID: in.DestinationLocationID,
		MoveDate:              in.MoveDate,
		CurrencyCode:          in.CurrencyCode,
		Reason:                in.Reason,
		Reference:             in.Reference,
		CreatedAt:             now,
		CreatedBy:             in.CreatedBy,
	}

	s, err := c.openBook(ctx, tx, req.key, req.method, in.CurrencyCode, pos.LastSequence, now)
	if err != nil {
		return nil, err
	}

	var imp inventory.Impact
	if in.Quantity > 0 {
		if _, err := inventory.AddQuantity(pos.OnHand(), in.Quantity); err != nil {
			return nil, err
		}
		unit := s.book.CurrentUnitCost()
		if req.unitCost != nil {
			unit = *req.unitCost
		}
		if imp, err = s.book.Receive(in.Quantity, unit, move.ID, seq, now); err != nil {
			return nil, err
		}
		total, err := inventory.MulCost(in.Quantity, unit)
		if err != nil {
			return nil, err
		}
		move.UnitCost, move.TotalCost = &unit, &total
		pos.AvailableQuantity += in.Quantity
		if err := c.shiftLocation(ctx, tx, req.key, in.DestinationLocationID, in.Quantity, now); err != nil {
			return nil, err
		}
		res.Variance = imp.Variance
	} else {
		out := -in.Quantity
		if req.reservation != nil {
			if pos.ReservedQuantity < out {
				return nil, domain.NewError(domain.ErrConflict, "la reserva excede lo reservado en la posición").
					With("reservation_id", req.reservation.ID).With("requested", out).With("reserved", pos.ReservedQuantity)
			}
			pos.ReservedQuantity -= out
		} else {
			if pos.AvailableQuantity < out {
				return nil, domain.NewError(domain.ErrInsufficientStock, "la salida deja el disponible en negativo").
					With("requested", out).With("available", pos.AvailableQuantity)
			}
			pos.AvailableQuantity -= out
		}
		if err := c.shiftLocation(ctx, tx, req.key, in.SourceLocationID, in.Quantity, now); err != nil {
			return nil, err
		}
		if imp, err = s.book.Issue(out, now); err != nil {
			return nil, err
		}
		if move.UnitCost == nil && move.TotalCost == nil {
			total := -imp.Cogs
			move.TotalCost = &total
			if imp.Cogs%out == 0 {
				u := imp.Cogs / out
				move.UnitCost = &u
			}
		}
		res.Cogs = imp.Cogs
	}

	moveID := move.ID
	s.record(entity.EntryMove, &moveID, imp, now)
	if err := s.save(ctx, tx); err != nil {
		return nil, err
	}
	pos.LastSequence = seq
	return move, nil
}

// applyTransfer mueve cantidad entre ubicaciones: dos patas con el mismo TransactionID.
// El disponible del producto y la valoración no cambian.
func (c *core) applyTransfer(ctx context.Context, tx TxRepos, req *postRequest, pos *entity.InventoryPosition, txID string, now time.Time) ([]*entity.StockMove, error) {
	in := req.in
	if err := c.shiftLocation(ctx, tx, req.key, in.SourceLocationID, -in.Quantity, now); err != nil {
		return nil, err
	}
	if err := c.shiftLocation(ctx, tx, req.key, in.DestinationLocationID, in.Quantity, now); err != nil {
		return nil, err
	}
	leg := func(seq, qty int64) *entity.StockMove {
		return &entity.StockMove{
			ID:                    uuid.New().String(),
			TransactionID:         txID,
			TenantID:              in.TenantID,
			ProductID:             in.ProductID,
			Type:                  entity.MoveTypeTransfer,
			Sequence:              seq,
			Quantity:              qty,
			SourceLocationID:      in.SourceLocationID,
			DestinationLocationID: in.DestinationLocationID,
			MoveDate:              in.MoveDate,
			CurrencyCode:          in.CurrencyCode,
			Reason:                in.Reason,
			Reference:             in.Reference,
			CreatedAt:             now,
			CreatedBy:             in.CreatedBy,
		}
	}
	out := leg(pos.LastSequence+1, -in.Quantity)
	inLeg := leg(pos.LastSequence+2, in.Quantity)
	pos.LastSequence += 2
	return []*entity.StockMove{out, inLeg}, nil
}

// checkLocated exige que lo ubicado no supere la existencia del producto. Una salida sin
// ubicación solo puede tomar stock que no esté asignado a ninguna ubicación.
func checkLocated(ctx context.Context, tx TxRepos, key entity.PositionKey, pos *entity.InventoryPosition) error {
	balances, err := tx.Positions.ListLocationBalances(ctx, key)
	if err != nil {
		return err
	}
	var located int64
	for _, b := range balances {
		located += b.Quantity
	}
	if located > pos.OnHand() {
		return domain.NewError(domain.ErrInsufficientStock, "la salida sin ubicación toma stock asignado a ubicaciones").
			With("located", located).With("on_hand", pos.OnHand())
	}
	return nil
}

// shiftLocation ajusta el saldo de una ubicación; nil = el movimiento no lleva ubicación.
func (c *core) shiftLocation(ctx context.Context, tx TxRepos, key entity.PositionKey, locationID *string, delta int64, now time.Time) error {
	if locationID == nil || delta == 0 {
		return nil
	}
	bal, err := tx.Positions.GetLocationBalance(ctx, key, *locationID)
	if err != nil {
		return err
	}
	if bal.Quantity+delta < 0 {
		return domain.NewError(domain.ErrInsufficientStock, "saldo insuficiente en la ubicación").
			With("location_id", *locationID).With("requested", -delta).With("available", bal.Quantity)
	}
	bal.Quantity += delta
	bal.UpdatedAt = now
	return tx.Positions.SaveLocationBalance(ctx, bal)
}

// ListMoves historial de movimientos del producto en orden de secuencia.
func (uc *LedgerUseCase) ListMoves(ctx context.Context, tenantID, productID string, afterSequence int64, limit int) ([]*entity.StockMove, error) {
	if _, err := uc.requireProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return uc.repos.Moves.ListByProduct(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID}, afterSequence, limit)
}

// GetTransaction movimientos de una transacción (dos en un traslado).
func (uc *LedgerUseCase) GetTransaction(ctx context.Context, tenantID, transactionID string) ([]*entity.StockMove, error) {
	if tenantID == "" || transactionID == "" {
		return nil, domain.ErrInvalidInput
	}
	moves, err := uc.repos.Moves.ListByTransaction(ctx, tenantID, transactionID)
	if err != nil {
		return nil, err
	}
	if len(moves) == 0 {
		return nil, domain.NewError(domain.ErrNotFound, "transacción no encontrada").With("transaction_id", transactionID)
	}
	return moves, nil
}

// rejectReason etiqueta de métrica para un error de posteo.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrCostInconsistency):
		return "cost_inconsistency"
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return "idempotency_conflict"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, domain.ErrTenantMismatch):
		return "tenant_mismatch"
	case errors.Is(err, domain.ErrValuationLayerExhausted):
		return "valuation_layer_exhausted"
	case errors.Is(err, domain.ErrStandardCostMissing):
		return "standard_cost_missing"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	}
	return "internal"
}
