package inventory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
	"github.com/jhoicas/inventario-ledger/pkg/config"
)

func TestOptionsFromConfig(t *testing.T) {
	opts, err := appinv.OptionsFromConfig(config.LedgerConfig{
		DefaultCurrency:    "USD",
		MaxRetries:         3,
		RetryInitial:       time.Millisecond,
		RetryMaxInterval:   time.Second,
		UomTolerance:       "0.001",
		SafetyStockMode:    "additive",
		ReorderConcurrency: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", opts.DefaultCurrency)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.True(t, decimal.RequireFromString("0.001").Equal(opts.UomTolerance))
	assert.Equal(t, inventory.SafetyStockAdditive, opts.SafetyStockMode)
	assert.Equal(t, 4, opts.ReorderConcurrency, "0 toma el valor por defecto")
	assert.NotNil(t, opts.Now)
}

func TestOptionsFromConfig_ToleranciaInvalida(t *testing.T) {
	for _, tol := range []string{"", "abc", "0", "-1"} {
		_, err := appinv.OptionsFromConfig(config.LedgerConfig{UomTolerance: tol})
		assert.Error(t, err, tol)
	}
}
