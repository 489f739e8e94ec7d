package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
)

// ReplenishmentUseCase evalúa reglas de reposición contra las posiciones actuales.
// Solo lee: cancelar una evaluación nunca deja estado a medias.
type ReplenishmentUseCase struct {
	*core
}

// RuleInput datos de una regla de reposición.
type RuleInput struct {
	TenantID     string
	ProductID    string
	WarehouseID  *string
	ReorderPoint int64
	MinQuantity  int64
	MaxQuantity  int64
	LeadTimeDays int32
	SafetyStock  int64
}

// Evaluate evalúa la regla activa de (tenant, producto, bodega). Devuelve nil si no hay
// regla o si el stock efectivo no está bajo el punto de reorden.
func (uc *ReplenishmentUseCase) Evaluate(ctx context.Context, tenantID, productID string, warehouseID *string) (*entity.ReplenishmentSuggestion, error) {
	if _, err := uc.requireProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	if err := uc.requireLocation(ctx, tenantID, warehouseID); err != nil {
		return nil, err
	}
	rule, err := uc.repos.Rules.FindActive(ctx, tenantID, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	if rule == nil || !rule.IsActive() {
		return nil, nil
	}
	return uc.evaluateRule(ctx, rule, uc.now())
}

// EvaluateAll evalúa todas las reglas activas del tenant con paralelismo acotado.
// Si ctx se cancela devuelve el error del contexto y ninguna sugerencia.
// El resultado se ordena por urgencia (mayor déficit primero) y Priority empieza en 1.
func (uc *ReplenishmentUseCase) EvaluateAll(ctx context.Context, tenantID string) ([]*entity.ReplenishmentSuggestion, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	start := time.Now()
	rules, err := uc.repos.Rules.ListActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	results := make([]*entity.ReplenishmentSuggestion, len(rules))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.opts.ReorderConcurrency)
	for i, rule := range rules {
		if rule.TenantID != tenantID {
			err := checkOwner(tenantID, rule.TenantID, "regla de reposición", rule.ID)
			uc.reportFatal("evaluate_all", entity.PositionKey{TenantID: tenantID, ProductID: rule.ProductID}, err)
			return nil, err
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := uc.evaluateRule(gctx, rule, now)
			if err != nil {
				return err
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*entity.ReplenishmentSuggestion, 0, len(results))
	for _, s := range results {
		if s != nil {
			out = append(out, s)
		}
	}
	rankSuggestions(out)
	uc.metrics.RecordReorderScan(time.Since(start).Seconds(), len(out))
	uc.log.Info().Str("tenant_id", tenantID).Int("rules", len(rules)).Int("suggestions", len(out)).
		Msg("barrido de reposición")
	return out, nil
}

// evaluateRule calcula la sugerencia de una regla.
// Stock efectivo = disponible (ya neto de reservas) + abastecimiento entrante.
// Una regla con bodega usa el saldo de esa ubicación.
func (uc *ReplenishmentUseCase) evaluateRule(ctx context.Context, rule *entity.ReorderRule, now time.Time) (*entity.ReplenishmentSuggestion, error) {
	key := entity.PositionKey{TenantID: rule.TenantID, ProductID: rule.ProductID}
	var available, reserved int64
	if rule.WarehouseID != nil {
		bal, err := uc.repos.Positions.GetLocationBalance(ctx, key, *rule.WarehouseID)
		if err != nil {
			return nil, err
		}
		available = bal.Quantity
	} else {
		pos, err := uc.repos.Positions.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		available, reserved = pos.AvailableQuantity, pos.ReservedQuantity
	}

	var incoming int64
	if uc.opts.IncomingSupply != nil {
		v, err := uc.opts.IncomingSupply.Incoming(ctx, rule.TenantID, rule.ProductID, rule.WarehouseID)
		if err != nil {
			return nil, err
		}
		incoming = v
	}

	effective := available + incoming
	qty, ok := inventory.SuggestQuantity(rule, effective, uc.opts.SafetyStockMode)
	if !ok {
		return nil, nil
	}
	return &entity.ReplenishmentSuggestion{
		RuleID:            rule.ID,
		TenantID:          rule.TenantID,
		ProductID:         rule.ProductID,
		WarehouseID:       rule.WarehouseID,
		AvailableQuantity: available,
		ReservedQuantity:  reserved,
		IncomingQuantity:  incoming,
		EffectiveStock:    effective,
		ReorderPoint:      rule.ReorderPoint,
		SuggestedQuantity: qty,
		LeadTimeDays:      rule.LeadTimeDays,
		ExpectedBy:        now.AddDate(0, 0, int(rule.LeadTimeDays)),
		EvaluatedAt:       now,
	}, nil
}

// rankSuggestions ordena por déficit, luego mayor lead time, luego producto, y asigna prioridad.
func rankSuggestions(s []*entity.ReplenishmentSuggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i], s[j]
		if a.Deficit() != b.Deficit() {
			return a.Deficit() > b.Deficit()
		}
		if a.LeadTimeDays != b.LeadTimeDays {
			return a.LeadTimeDays > b.LeadTimeDays
		}
		return a.ProductID < b.ProductID
	})
	// 1 = más urgente
	for i := range s {
		s[i].Priority = i + 1
	}
}

// CreateRule crea una regla; ErrConflict si ya hay una activa para la misma clave.
func (uc *ReplenishmentUseCase) CreateRule(ctx context.Context, in RuleInput) (*entity.ReorderRule, error) {
	now := uc.now()
	rule := &entity.ReorderRule{
		ID:           uuid.New().String(),
		TenantID:     in.TenantID,
		ProductID:    in.ProductID,
		WarehouseID:  in.WarehouseID,
		ReorderPoint: in.ReorderPoint,
		MinQuantity:  in.MinQuantity,
		MaxQuantity:  in.MaxQuantity,
		LeadTimeDays: in.LeadTimeDays,
		SafetyStock:  in.SafetyStock,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := inventory.ValidateReorderRule(rule); err != nil {
		return nil, err
	}
	if _, err := uc.requireProduct(ctx, in.TenantID, in.ProductID); err != nil {
		return nil, err
	}
	if err := uc.requireLocation(ctx, in.TenantID, in.WarehouseID); err != nil {
		return nil, err
	}
	if err := uc.repos.Rules.Create(ctx, rule); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.NewError(domain.ErrConflict, "ya existe una regla activa para el producto y bodega").
				With("product_id", in.ProductID)
		}
		return nil, err
	}
	return rule, nil
}

// UpdateRule actualiza umbrales de una regla existente (producto y bodega no cambian).
func (uc *ReplenishmentUseCase) UpdateRule(ctx context.Context, tenantID, id string, in RuleInput) (*entity.ReorderRule, error) {
	rule, err := uc.GetRule(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	rule.ReorderPoint = in.ReorderPoint
	rule.MinQuantity = in.MinQuantity
	rule.MaxQuantity = in.MaxQuantity
	rule.LeadTimeDays = in.LeadTimeDays
	rule.SafetyStock = in.SafetyStock
	rule.UpdatedAt = uc.now()
	if err := inventory.ValidateReorderRule(rule); err != nil {
		return nil, err
	}
	if err := uc.repos.Rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// GetRule devuelve una regla activa del tenant.
func (uc *ReplenishmentUseCase) GetRule(ctx context.Context, tenantID, id string) (*entity.ReorderRule, error) {
	if tenantID == "" || id == "" {
		return nil, domain.ErrInvalidInput
	}
	rule, err := uc.repos.Rules.GetByID(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if rule == nil || !rule.IsActive() {
		return nil, domain.NewError(domain.ErrNotFound, "regla no encontrada").With("rule_id", id)
	}
	if err := checkOwner(tenantID, rule.TenantID, "regla de reposición", id); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule elimina (lógicamente) una regla.
func (uc *ReplenishmentUseCase) DeleteRule(ctx context.Context, tenantID, id string) error {
	if _, err := uc.GetRule(ctx, tenantID, id); err != nil {
		return err
	}
	return uc.repos.Rules.SoftDelete(ctx, tenantID, id)
}

// ListRules reglas activas del tenant.
func (uc *ReplenishmentUseCase) ListRules(ctx context.Context, tenantID string) ([]*entity.ReorderRule, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	return uc.repos.Rules.ListActive(ctx, tenantID)
}
