package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
)

func TestSuggestQuantity(t *testing.T) {
	rule := &entity.ReorderRule{ReorderPoint: 20, MinQuantity: 10, MaxQuantity: 100, LeadTimeDays: 3, SafetyStock: 5}

	cases := []struct {
		name      string
		effective int64
		mode      inventory.SafetyStockMode
		want      int64
		ok        bool
	}{
		{"bajo punto de reorden", 15, inventory.SafetyStockEmbedded, 85, true},
		{"en el punto de reorden no sugiere", 20, inventory.SafetyStockEmbedded, 0, false},
		{"stock de seguridad aditivo", 15, inventory.SafetyStockAdditive, 90, true},
		{"stock negativo por reservas", -5, inventory.SafetyStockEmbedded, 105, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := inventory.SuggestQuantity(rule, c.effective, c.mode)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestSuggestQuantity_RespetaMinimo(t *testing.T) {
	rule := &entity.ReorderRule{ReorderPoint: 50, MinQuantity: 30, MaxQuantity: 60, LeadTimeDays: 1}
	got, ok := inventory.SuggestQuantity(rule, 45, inventory.SafetyStockEmbedded)
	assert.True(t, ok)
	assert.Equal(t, int64(30), got, "max - efectivo = 15, pero el mínimo de pedido es 30")
}

func TestValidateReorderRule(t *testing.T) {
	base := entity.ReorderRule{TenantID: "t", ProductID: "p", ReorderPoint: 5, MinQuantity: 1, MaxQuantity: 10, LeadTimeDays: 2}
	assert.NoError(t, inventory.ValidateReorderRule(&base))

	bad := base
	bad.MaxQuantity = 0
	assert.ErrorIs(t, inventory.ValidateReorderRule(&bad), domain.ErrInvalidInput)

	bad = base
	bad.LeadTimeDays = 0
	assert.ErrorIs(t, inventory.ValidateReorderRule(&bad), domain.ErrInvalidInput)

	bad = base
	bad.SafetyStock = -1
	assert.ErrorIs(t, inventory.ValidateReorderRule(&bad), domain.ErrInvalidInput)
}
