package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/inventario-ledger/internal/domain"
)

func TestCommitError_UnicoVioladoEsModificacionConcurrente(t *testing.T) {
	err := commitError(&pgconn.PgError{Code: codeUniqueViolation}, "commit")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Contains(t, err.Error(), "cause=")
}

func TestCommitError_SerializacionYDeadlock(t *testing.T) {
	for _, code := range []string{codeSerializationFailure, codeDeadlockDetected} {
		wrapped := fmt.Errorf("commit: %w", &pgconn.PgError{Code: code})
		assert.ErrorIs(t, commitError(wrapped, "commit"), domain.ErrConcurrentModification, code)
	}
}

func TestCommitError_OtrosErrores(t *testing.T) {
	assert.NoError(t, commitError(nil, "commit"))
	assert.ErrorIs(t, commitError(context.Canceled, "commit"), context.Canceled)

	orig := errors.New("conexión cerrada")
	err := commitError(orig, "commit")
	assert.ErrorIs(t, err, orig)
	assert.NotErrorIs(t, err, domain.ErrConcurrentModification)

	fk := &pgconn.PgError{Code: "23503"}
	assert.NotErrorIs(t, commitError(fk, "commit"), domain.ErrConcurrentModification)
}

func TestAsConcurrent_SoloReintentables(t *testing.T) {
	unique := &pgconn.PgError{Code: codeUniqueViolation}
	assert.Same(t, unique, asConcurrent(unique, "fn"), "el único violado dentro de fn lo traduce cada repositorio")
	assert.ErrorIs(t, asConcurrent(&pgconn.PgError{Code: codeSerializationFailure}, "fn"), domain.ErrConcurrentModification)
}
