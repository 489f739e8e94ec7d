package memory

import (
	"context"
	"sort"
	"time"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var (
	_ repository.ProductRepository          = (*CatalogRepo)(nil)
	_ repository.TenantRepository           = (*TenantRepo)(nil)
	_ repository.LocationRepository         = (*LocationRepo)(nil)
	_ repository.ValuationSettingRepository = (*SettingRepo)(nil)
	_ repository.UomConversionRepository    = (*ConversionRepo)(nil)
	_ repository.ReorderRuleRepository      = (*RuleRepo)(nil)
)

// PutTenant registra o reemplaza un tenant (el registro de tenants es externo).
func (s *Store) PutTenant(t *entity.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *t
	s.tenants[t.ID] = &v
}

// PutProduct registra o reemplaza un producto del maestro.
func (s *Store) PutProduct(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *p
	s.products[p.ID] = &v
}

// PutLocation registra o reemplaza una ubicación del maestro de bodegas.
func (s *Store) PutLocation(l *entity.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := *l
	s.locations[l.ID] = &v
}

// ─── maestros ──────────────────────────────────────────────────────────────────

// CatalogRepo lectura de productos.
type CatalogRepo struct{ s *Store }

// TenantRepo lectura de tenants.
type TenantRepo struct{ s *Store }

// LocationRepo lectura de ubicaciones.
type LocationRepo struct{ s *Store }

func (s *Store) Products() *CatalogRepo       { return &CatalogRepo{s} }
func (s *Store) Tenants() *TenantRepo         { return &TenantRepo{s} }
func (s *Store) Locations() *LocationRepo     { return &LocationRepo{s} }
func (s *Store) Settings() *SettingRepo       { return &SettingRepo{s} }
func (s *Store) Conversions() *ConversionRepo { return &ConversionRepo{s} }
func (s *Store) Rules() *RuleRepo             { return &RuleRepo{s} }

// Repositories arma las dependencias del núcleo sobre este store.
func (s *Store) Repositories() appinv.Repositories {
	return appinv.Repositories{
		Tx:           s,
		Products:     s.Products(),
		Locations:    s.Locations(),
		Tenants:      s.Tenants(),
		Moves:        s.Moves(),
		Positions:    s.Positions(),
		Valuations:   s.Valuations(),
		Settings:     s.Settings(),
		Conversions:  s.Conversions(),
		Reservations: s.Reservations(),
		Rules:        s.Rules(),
	}
}

func (r *CatalogRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	v := *p
	return &v, nil
}

func (r *TenantRepo) GetByID(_ context.Context, id string) (*entity.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, nil
	}
	v := *t
	return &v, nil
}

func (r *TenantRepo) ListActive(_ context.Context) ([]*entity.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Tenant, 0, len(r.s.tenants))
	for _, t := range r.s.tenants {
		if t.IsActive() {
			v := *t
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *LocationRepo) GetByID(_ context.Context, id string) (*entity.Location, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.locations[id]
	if !ok {
		return nil, nil
	}
	v := *l
	return &v, nil
}

// ─── configuración de valoración ───────────────────────────────────────────────

// SettingRepo configuraciones de valoración.
type SettingRepo struct{ s *Store }

func sameScope(a *string, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *SettingRepo) GetByID(_ context.Context, id string) (*entity.ValuationSetting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.settings[id]
	if !ok {
		return nil, nil
	}
	v := *st
	return &v, nil
}

func (r *SettingRepo) GetActive(_ context.Context, tenantID string, scope entity.ValuationScope, scopeID *string) (*entity.ValuationSetting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, st := range r.s.settings {
		if st.TenantID == tenantID && st.Scope == scope && sameScope(st.ScopeID, scopeID) && st.IsActive() {
			v := *st
			return &v, nil
		}
	}
	return nil, nil
}

func (r *SettingRepo) Create(_ context.Context, st *entity.ValuationSetting) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.settings {
		if cur.TenantID == st.TenantID && cur.Scope == st.Scope && sameScope(cur.ScopeID, st.ScopeID) && cur.IsActive() {
			return domain.ErrDuplicate
		}
	}
	v := *st
	r.s.settings[st.ID] = &v
	return nil
}

func (r *SettingRepo) SoftDelete(_ context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settings[id]
	if !ok || st.TenantID != tenantID || !st.IsActive() {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	st.DeletedAt = &now
	st.UpdatedAt = now
	return nil
}

func (r *SettingRepo) ListActive(_ context.Context, tenantID string) ([]*entity.ValuationSetting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.ValuationSetting, 0)
	for _, st := range r.s.settings {
		if st.TenantID == tenantID && st.IsActive() {
			v := *st
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope > out[j].Scope
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ─── conversiones ──────────────────────────────────────────────────────────────

// ConversionRepo aristas de conversión de unidades.
type ConversionRepo struct{ s *Store }

func (r *ConversionRepo) GetByID(_ context.Context, id string) (*entity.UomConversion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversions[id]
	if !ok {
		return nil, nil
	}
	v := *c
	return &v, nil
}

func (r *ConversionRepo) ListActive(_ context.Context, key entity.PositionKey) ([]*entity.UomConversion, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.UomConversion, 0)
	for _, c := range r.s.conversions {
		if c.TenantID == key.TenantID && c.ProductID == key.ProductID && c.IsUsable() {
			v := *c
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromUnit != out[j].FromUnit {
			return out[i].FromUnit < out[j].FromUnit
		}
		return out[i].ToUnit < out[j].ToUnit
	})
	return out, nil
}

func (r *ConversionRepo) Create(_ context.Context, c *entity.UomConversion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.conversions {
		if cur.TenantID == c.TenantID && cur.ProductID == c.ProductID &&
			cur.FromUnit == c.FromUnit && cur.ToUnit == c.ToUnit && cur.DeletedAt == nil {
			return domain.ErrDuplicate
		}
	}
	v := *c
	r.s.conversions[c.ID] = &v
	return nil
}

func (r *ConversionRepo) Deactivate(_ context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversions[id]
	if !ok || c.TenantID != tenantID || c.DeletedAt != nil {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	c.Active = false
	c.DeletedAt = &now
	c.UpdatedAt = now
	return nil
}

// ─── reglas de reposición ──────────────────────────────────────────────────────

// RuleRepo reglas de reposición.
type RuleRepo struct{ s *Store }

func (r *RuleRepo) GetByID(_ context.Context, id string) (*entity.ReorderRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, nil
	}
	return copyRule(rule), nil
}

func (r *RuleRepo) FindActive(_ context.Context, tenantID, productID string, warehouseID *string) (*entity.ReorderRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rule := range r.s.rules {
		if rule.TenantID == tenantID && rule.ProductID == productID && sameScope(rule.WarehouseID, warehouseID) && rule.IsActive() {
			return copyRule(rule), nil
		}
	}
	return nil, nil
}

func (r *RuleRepo) ListActive(_ context.Context, tenantID string) ([]*entity.ReorderRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.ReorderRule, 0)
	for _, rule := range r.s.rules {
		if rule.TenantID == tenantID && rule.IsActive() {
			out = append(out, copyRule(rule))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *RuleRepo) Create(_ context.Context, rule *entity.ReorderRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.rules {
		if cur.TenantID == rule.TenantID && cur.ProductID == rule.ProductID &&
			sameScope(cur.WarehouseID, rule.WarehouseID) && cur.IsActive() {
			return domain.ErrDuplicate
		}
	}
	r.s.rules[rule.ID] = copyRule(rule)
	return nil
}

func (r *RuleRepo) Update(_ context.Context, rule *entity.ReorderRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.rules[rule.ID]
	if !ok || cur.TenantID != rule.TenantID || !cur.IsActive() {
		return domain.ErrNotFound
	}
	r.s.rules[rule.ID] = copyRule(rule)
	return nil
}

func (r *RuleRepo) SoftDelete(_ context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok || rule.TenantID != tenantID || !rule.IsActive() {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	rule.DeletedAt = &now
	rule.UpdatedAt = now
	return nil
}

func copyRule(r *entity.ReorderRule) *entity.ReorderRule {
	v := *r
	if r.WarehouseID != nil {
		w := *r.WarehouseID
		v.WarehouseID = &w
	}
	if r.DeletedAt != nil {
		d := *r.DeletedAt
		v.DeletedAt = &d
	}
	return &v
}
