package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/inventario-ledger/internal/domain"
)

func TestLedgerError_MensajeYDetalles(t *testing.T) {
	err := domain.NewError(domain.ErrInsufficientStock, "la salida deja el disponible negativo").
		With("requested", int64(60)).
		With("available", int64(40))

	assert.Equal(t, "stock insuficiente: la salida deja el disponible negativo (available=40, requested=60)", err.Error())
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
	assert.False(t, errors.Is(err, domain.ErrInsufficientAvailable))
}

func TestDetailsOf_AtraviesaWrapping(t *testing.T) {
	base := domain.NewError(domain.ErrTenantMismatch, "").With("tenant_id", "t2")
	wrapped := fmt.Errorf("post move: %w", base)

	assert.Equal(t, "t2", domain.DetailsOf(wrapped)["tenant_id"])
	assert.Nil(t, domain.DetailsOf(errors.New("otro")))
	assert.Equal(t, "referencia cruzada entre tenants", domain.NewError(domain.ErrTenantMismatch, "").Error())
}

func TestClasificacion(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
		fatal     bool
	}{
		{domain.NewError(domain.ErrConcurrentModification, "versión"), true, false},
		{domain.ErrTenantMismatch, false, true},
		{fmt.Errorf("fifo: %w", domain.ErrValuationLayerExhausted), false, true},
		{domain.ErrInsufficientStock, false, false},
		{domain.ErrNoConversionPath, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.retryable, domain.IsRetryable(tt.err), tt.err.Error())
		assert.Equal(t, tt.fatal, domain.IsFatal(tt.err), tt.err.Error())
	}
}
