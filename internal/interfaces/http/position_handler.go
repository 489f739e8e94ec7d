package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
)

// ErrorResponse cuerpo de error de la API de operación.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// PositionHandler consultas de solo lectura de saldos y conciliación.
type PositionHandler struct {
	positions *appinv.PositionQuery
	reconcile *appinv.ReconcileUseCase
}

// NewPositionHandler construye el handler.
func NewPositionHandler(positions *appinv.PositionQuery, reconcile *appinv.ReconcileUseCase) *PositionHandler {
	return &PositionHandler{positions: positions, reconcile: reconcile}
}

// List GET /ops/tenants/:tenant/positions
func (h *PositionHandler) List(c *fiber.Ctx) error {
	list, err := h.positions.ListPositions(c.UserContext(), c.Params("tenant"))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]fiber.Map, 0, len(list))
	for _, p := range list {
		out = append(out, fiber.Map{
			"product_id": p.ProductID,
			"available":  p.AvailableQuantity,
			"reserved":   p.ReservedQuantity,
			"on_hand":    p.OnHand(),
			"version":    p.Version,
		})
	}
	return c.JSON(fiber.Map{"total": len(out), "positions": out})
}

// Get GET /ops/tenants/:tenant/positions/:product (incluye saldos por ubicación).
func (h *PositionHandler) Get(c *fiber.Ctx) error {
	ctx := c.UserContext()
	tenantID, productID := c.Params("tenant"), c.Params("product")
	pos, err := h.positions.GetPosition(ctx, tenantID, productID)
	if err != nil {
		return writeError(c, err)
	}
	balances, err := h.positions.ListLocationBalances(ctx, tenantID, productID)
	if err != nil {
		return writeError(c, err)
	}
	locs := make(fiber.Map, len(balances))
	for _, b := range balances {
		locs[b.LocationID] = b.Quantity
	}
	return c.JSON(fiber.Map{
		"tenant_id":     pos.TenantID,
		"product_id":    pos.ProductID,
		"available":     pos.AvailableQuantity,
		"reserved":      pos.ReservedQuantity,
		"on_hand":       pos.OnHand(),
		"last_sequence": pos.LastSequence,
		"version":       pos.Version,
		"locations":     locs,
	})
}

// Reconcile GET /ops/tenants/:tenant/positions/:product/reconcile
func (h *PositionHandler) Reconcile(c *fiber.Ctx) error {
	rep, err := h.reconcile.Reconcile(c.UserContext(), c.Params("tenant"), c.Params("product"))
	if err != nil {
		return writeError(c, err)
	}
	status := fiber.StatusOK
	if !rep.OK() {
		status = fiber.StatusConflict
	}
	diffs := make([]fiber.Map, 0, len(rep.Discrepancies))
	for _, d := range rep.Discrepancies {
		diffs = append(diffs, fiber.Map{"field": d.Field, "expected": d.Expected, "actual": d.Actual})
	}
	return c.Status(status).JSON(fiber.Map{"ok": rep.OK(), "discrepancies": diffs})
}

// writeError traduce la taxonomía del dominio a códigos HTTP.
func writeError(c *fiber.Ctx, err error) error {
	resp := ErrorResponse{Code: "INTERNAL", Message: err.Error()}
	var le *domain.LedgerError
	if errors.As(err, &le) {
		resp.Details = le.Details
	}
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, resp.Code = fiber.StatusBadRequest, "VALIDATION"
	case errors.Is(err, domain.ErrNotFound):
		status, resp.Code = fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrTenantMismatch):
		status, resp.Code = fiber.StatusForbidden, "TENANT_MISMATCH"
	case errors.Is(err, domain.ErrConcurrentModification):
		status, resp.Code = fiber.StatusConflict, "CONCURRENT_MODIFICATION"
	case errors.Is(err, domain.ErrConflict):
		status, resp.Code = fiber.StatusConflict, "CONFLICT"
	}
	return c.Status(status).JSON(resp)
}
