package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
)

// quantityPlaces precisión de cantidades convertidas.
const quantityPlaces = 6

// UomUseCase resuelve y administra conversiones de unidad por producto.
type UomUseCase struct {
	*core
}

// ConversionInput entrada para crear una arista de conversión.
type ConversionInput struct {
	TenantID  string
	ProductID string
	FromUnit  string
	ToUnit    string
	Factor    decimal.Decimal
}

// Resolve devuelve el factor tal que 1 fromUnit = factor toUnit para el producto.
func (uc *UomUseCase) Resolve(ctx context.Context, tenantID, productID, fromUnit, toUnit string) (decimal.Decimal, error) {
	fromUnit, toUnit = normalizeUnit(fromUnit), normalizeUnit(toUnit)
	if fromUnit == "" || toUnit == "" {
		return decimal.Zero, domain.NewError(domain.ErrInvalidInput, "unidades obligatorias")
	}
	if _, err := uc.requireProduct(ctx, tenantID, productID); err != nil {
		return decimal.Zero, err
	}
	if fromUnit == toUnit {
		return decimal.NewFromInt(1), nil
	}
	edges, err := uc.repos.Conversions.ListActive(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID})
	if err != nil {
		return decimal.Zero, err
	}
	factor, err := inventory.NewConversionGraph(edges).Resolve(fromUnit, toUnit, uc.opts.UomTolerance)
	if err != nil {
		if errors.Is(err, domain.ErrInconsistentConversion) {
			uc.log.Warn().Err(err).Str("tenant_id", tenantID).Str("product_id", productID).
				Msg("conversiones inconsistentes")
		}
		return decimal.Zero, err
	}
	return factor, nil
}

// ConvertQuantity convierte qty de fromUnit a toUnit redondeando a 6 decimales.
func (uc *UomUseCase) ConvertQuantity(ctx context.Context, tenantID, productID string, qty decimal.Decimal, fromUnit, toUnit string) (decimal.Decimal, error) {
	factor, err := uc.Resolve(ctx, tenantID, productID, fromUnit, toUnit)
	if err != nil {
		return decimal.Zero, err
	}
	return qty.Mul(factor).RoundBank(quantityPlaces), nil
}

// CreateConversion agrega una arista dirigida. No crea la inversa.
func (uc *UomUseCase) CreateConversion(ctx context.Context, in ConversionInput) (*entity.UomConversion, error) {
	in.FromUnit, in.ToUnit = normalizeUnit(in.FromUnit), normalizeUnit(in.ToUnit)
	switch {
	case in.FromUnit == "" || in.ToUnit == "":
		return nil, domain.NewError(domain.ErrInvalidInput, "unidades obligatorias")
	case in.FromUnit == in.ToUnit:
		return nil, domain.NewError(domain.ErrInvalidInput, "from_unit y to_unit deben ser distintas").With("unit", in.FromUnit)
	case !in.Factor.IsPositive():
		return nil, domain.NewError(domain.ErrInvalidInput, "el factor debe ser positivo").With("factor", in.Factor.String())
	}
	if _, err := uc.requireProduct(ctx, in.TenantID, in.ProductID); err != nil {
		return nil, err
	}
	now := uc.now()
	c := &entity.UomConversion{
		ID:        uuid.New().String(),
		TenantID:  in.TenantID,
		ProductID: in.ProductID,
		FromUnit:  in.FromUnit,
		ToUnit:    in.ToUnit,
		Factor:    in.Factor,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repos.Conversions.Create(ctx, c); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.NewError(domain.ErrConflict, "ya existe la conversión").
				With("from", in.FromUnit).With("to", in.ToUnit)
		}
		return nil, err
	}
	return c, nil
}

// DeactivateConversion desactiva una arista del tenant.
func (uc *UomUseCase) DeactivateConversion(ctx context.Context, tenantID, id string) error {
	if tenantID == "" || id == "" {
		return domain.ErrInvalidInput
	}
	c, err := uc.repos.Conversions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c == nil || c.DeletedAt != nil {
		return domain.NewError(domain.ErrNotFound, "conversión no encontrada").With("conversion_id", id)
	}
	if err := checkOwner(tenantID, c.TenantID, "conversión", id); err != nil {
		return err
	}
	return uc.repos.Conversions.Deactivate(ctx, tenantID, id)
}

// ListConversions aristas activas del producto.
func (uc *UomUseCase) ListConversions(ctx context.Context, tenantID, productID string) ([]*entity.UomConversion, error) {
	if _, err := uc.requireProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return uc.repos.Conversions.ListActive(ctx, entity.PositionKey{TenantID: tenantID, ProductID: productID})
}

func normalizeUnit(u string) string {
	return strings.ToUpper(strings.TrimSpace(u))
}
