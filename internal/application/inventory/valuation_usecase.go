package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// ValuationUseCase administra métodos de valoración, costo estándar y consultas de costo.
type ValuationUseCase struct {
	*core
}

// SettingInput entrada para fijar un método de valoración en un alcance.
type SettingInput struct {
	TenantID string
	Scope    entity.ValuationScope
	ScopeID  *string // nil solo para alcance tenant
	Method   entity.ValuationMethod
}

// ValuationView estado de costo de un producto con sus capas vigentes.
type ValuationView struct {
	State  *entity.ValuationState
	Layers []*entity.CostLayer
}

// ResolveMethod aplica la precedencia producto > categoría > tenant. Sin configuración: FIFO.
func (uc *ValuationUseCase) ResolveMethod(ctx context.Context, tenantID, productID string) (entity.ValuationMethod, error) {
	p, err := uc.requireProduct(ctx, tenantID, productID)
	if err != nil {
		return "", err
	}
	return uc.resolveMethod(ctx, p)
}

func (c *core) resolveMethod(ctx context.Context, p *entity.Product) (entity.ValuationMethod, error) {
	id := p.ID
	s, err := c.repos.Settings.GetActive(ctx, p.TenantID, entity.ScopeProduct, &id)
	if err != nil {
		return "", err
	}
	if s == nil && p.CategoryID != nil {
		if s, err = c.repos.Settings.GetActive(ctx, p.TenantID, entity.ScopeCategory, p.CategoryID); err != nil {
			return "", err
		}
	}
	if s == nil {
		if s, err = c.repos.Settings.GetActive(ctx, p.TenantID, entity.ScopeTenant, nil); err != nil {
			return "", err
		}
	}
	if s == nil || !s.IsActive() {
		return entity.ValuationFIFO, nil
	}
	return s.Method, nil
}

// SetValuationSetting fija el método del alcance. Si hay una configuración activa con otro
// método se marca como eliminada y se crea la nueva. Los libros existentes se re-basan en
// su próximo movimiento o con Rebaseline.
func (uc *ValuationUseCase) SetValuationSetting(ctx context.Context, in SettingInput) (*entity.ValuationSetting, error) {
	if in.TenantID == "" || !in.Scope.IsValid() || !in.Method.IsValid() {
		return nil, domain.NewError(domain.ErrInvalidInput, "configuración de valoración inválida").
			With("scope", in.Scope).With("method", in.Method)
	}
	if (in.Scope == entity.ScopeTenant) != (in.ScopeID == nil) {
		return nil, domain.NewError(domain.ErrInvalidInput, "scope_id es obligatorio salvo en alcance tenant").
			With("scope", in.Scope)
	}
	if in.Scope == entity.ScopeProduct {
		if _, err := uc.requireProduct(ctx, in.TenantID, *in.ScopeID); err != nil {
			return nil, err
		}
	}

	existing, err := uc.repos.Settings.GetActive(ctx, in.TenantID, in.Scope, in.ScopeID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Method == in.Method {
			return existing, nil
		}
		if err := uc.repos.Settings.SoftDelete(ctx, in.TenantID, existing.ID); err != nil {
			return nil, err
		}
	}

	now := uc.now()
	s := &entity.ValuationSetting{
		ID:        uuid.New().String(),
		TenantID:  in.TenantID,
		Scope:     in.Scope,
		ScopeID:   in.ScopeID,
		Method:    in.Method,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repos.Settings.Create(ctx, s); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.NewError(domain.ErrConflict, "ya existe una configuración activa para el alcance").
				With("scope", in.Scope)
		}
		return nil, err
	}
	uc.log.Info().Str("tenant_id", in.TenantID).Str("scope", string(in.Scope)).Str("method", string(in.Method)).
		Msg("método de valoración configurado")
	return s, nil
}

// DeleteValuationSetting elimina (lógicamente) una configuración.
func (uc *ValuationUseCase) DeleteValuationSetting(ctx context.Context, tenantID, id string) error {
	if tenantID == "" || id == "" {
		return domain.ErrInvalidInput
	}
	s, err := uc.repos.Settings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s == nil || !s.IsActive() {
		return domain.NewError(domain.ErrNotFound, "configuración no encontrada").With("setting_id", id)
	}
	if err := checkOwner(tenantID, s.TenantID, "configuración de valoración", id); err != nil {
		return err
	}
	return uc.repos.Settings.SoftDelete(ctx, tenantID, id)
}

// ListValuationSettings configuraciones activas del tenant.
func (uc *ValuationUseCase) ListValuationSettings(ctx context.Context, tenantID string) ([]*entity.ValuationSetting, error) {
	if tenantID == "" {
		return nil, domain.ErrInvalidInput
	}
	return uc.repos.Settings.ListActive(ctx, tenantID)
}

// SetStandardCost fija el costo estándar del producto y revalúa el saldo si el método es estándar.
func (uc *ValuationUseCase) SetStandardCost(ctx context.Context, tenantID, productID string, cost int64) (*entity.ValuationState, error) {
	if cost <= 0 {
		return nil, domain.NewError(domain.ErrInvalidInput, "el costo estándar debe ser positivo").With("standard_cost", cost)
	}
	p, err := uc.requireProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	method, err := uc.resolveMethod(ctx, p)
	if err != nil {
		return nil, err
	}
	key := entity.PositionKey{TenantID: tenantID, ProductID: productID}

	var out *entity.ValuationState
	err = uc.withRetry(ctx, "set_standard_cost", key, func() error {
		return uc.repos.Tx.Run(ctx, key, func(ctx context.Context, tx TxRepos) error {
			pos, err := tx.Positions.Get(ctx, key)
			if err != nil {
				return err
			}
			now := uc.now()
			s, err := uc.openBook(ctx, tx, key, method, "", pos.LastSequence, now)
			if err != nil {
				return err
			}
			imp, err := s.book.SetStandardCost(cost, now)
			if err != nil {
				return err
			}
			s.record(entity.EntryStandardCost, nil, imp, now)
			if err := s.save(ctx, tx); err != nil {
				return err
			}
			pos.UpdatedAt = now
			if err := tx.Positions.Save(ctx, pos, pos.Version); err != nil {
				return err
			}
			out = s.book.State
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rebaseline colapsa el libro del producto al método resuelto: saldo equivalente AVCO y,
// en FIFO, una única capa. Si el método almacenado ya es el resuelto no cambia nada.
func (uc *ValuationUseCase) Rebaseline(ctx context.Context, tenantID, productID string) (*ValuationView, error) {
	p, err := uc.requireProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	method, err := uc.resolveMethod(ctx, p)
	if err != nil {
		return nil, err
	}
	key := entity.PositionKey{TenantID: tenantID, ProductID: productID}

	var out *ValuationView
	err = uc.withRetry(ctx, "rebaseline", key, func() error {
		return uc.repos.Tx.Run(ctx, key, func(ctx context.Context, tx TxRepos) error {
			pos, err := tx.Positions.Get(ctx, key)
			if err != nil {
				return err
			}
			now := uc.now()
			s, err := uc.openBook(ctx, tx, key, method, "", pos.LastSequence, now)
			if err != nil {
				return err
			}
			if len(s.entries) == 0 {
				// mismo método: no hay nada que colapsar
				out = &ValuationView{State: s.book.State, Layers: s.book.Layers}
				return nil
			}
			if err := s.save(ctx, tx); err != nil {
				return err
			}
			pos.UpdatedAt = now
			if err := tx.Positions.Save(ctx, pos, pos.Version); err != nil {
				return err
			}
			out = &ValuationView{State: s.book.State, Layers: s.book.Layers}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetValuation estado de costo y capas vigentes. Un producto sin movimientos devuelve
// un estado vacío con el método resuelto.
func (uc *ValuationUseCase) GetValuation(ctx context.Context, tenantID, productID string) (*ValuationView, error) {
	p, err := uc.requireProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	key := entity.PositionKey{TenantID: tenantID, ProductID: productID}
	state, err := uc.repos.Valuations.GetState(ctx, key)
	if err != nil {
		return nil, err
	}
	if state == nil {
		method, err := uc.resolveMethod(ctx, p)
		if err != nil {
			return nil, err
		}
		state = &entity.ValuationState{TenantID: tenantID, ProductID: productID, Method: method, CurrencyCode: uc.opts.DefaultCurrency}
	}
	layers, err := uc.repos.Valuations.ListLayers(ctx, key)
	if err != nil {
		return nil, err
	}
	return &ValuationView{State: state, Layers: layers}, nil
}

// ListValuationEntries auditoría de valoración más reciente primero.
func (uc *ValuationUseCase) ListValuationEntries(ctx context.Context, tenantID, productID string, limit int) ([]*entity.ValuationEntry, error) {
	if _, err := uc.requireProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return uc.repos.Valuations.ListEntries(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID}, limit)
}
