package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/inventario-ledger/internal/domain"
)

// Códigos SQLSTATE que el adaptador traduce a la taxonomía del dominio.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeUniqueViolation
	}
	return strings.Contains(err.Error(), codeUniqueViolation)
}

// isRetryable serialización o deadlock: la transacción completa se puede repetir.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// asConcurrent traduce fallos reintentables a domain.ErrConcurrentModification.
func asConcurrent(err error, op string) error {
	if err == nil || !isRetryable(err) {
		return err
	}
	return domain.NewError(domain.ErrConcurrentModification, op).With("cause", err.Error())
}

// commitError traduce un fallo de Commit. La carrera con otra transacción (serialización,
// deadlock o un único violado por una inserción concurrente) es modificación concurrente.
func commitError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case isRetryable(err) || isUniqueViolation(err):
		return domain.NewError(domain.ErrConcurrentModification, op).With("cause", err.Error())
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("commit transaction: %w", err)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
