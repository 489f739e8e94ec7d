package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Errores de validación: se devuelven al caller para manejo normal.
	ErrInsufficientStock      = errors.New("stock insuficiente")
	ErrInsufficientAvailable  = errors.New("disponible insuficiente para reservar")
	ErrCostInconsistency      = errors.New("costos inconsistentes")
	ErrNoConversionPath       = errors.New("no existe ruta de conversión entre unidades")
	ErrInconsistentConversion = errors.New("conversión directa y derivada no coinciden")
	ErrIdempotencyConflict    = errors.New("clave de idempotencia reutilizada con otro contenido")
	ErrStandardCostMissing    = errors.New("costo estándar no configurado")

	// Reintentable: el núcleo lo reintenta un número acotado de veces.
	ErrConcurrentModification = errors.New("modificación concurrente de la posición")

	// Fatales: indican un invariante roto, nunca se reintentan.
	ErrTenantMismatch          = errors.New("referencia cruzada entre tenants")
	ErrValuationLayerExhausted = errors.New("capas de valoración agotadas")
)

// LedgerError acompaña un error de la taxonomía con el detalle del invariante violado
// (cantidades, ids) para que el caller y las herramientas de conciliación lo vean.
type LedgerError struct {
	Kind    error
	Message string
	Details map[string]any
}

// NewError crea un LedgerError del tipo indicado.
func NewError(kind error, message string) *LedgerError {
	return &LedgerError{Kind: kind, Message: message}
}

// Error implementa error: "<kind>: <message> (k=v, ...)".
func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap permite errors.Is(err, domain.ErrInsufficientStock).
func (e *LedgerError) Unwrap() error {
	return e.Kind
}

// With agrega un detalle al error.
func (e *LedgerError) With(key string, value any) *LedgerError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// DetailsOf devuelve los detalles de un LedgerError envuelto en err (nil si no hay).
func DetailsOf(err error) map[string]any {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Details
	}
	return nil
}

// IsRetryable indica si el error es un conflicto de versión optimista.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsFatal indica un invariante roto: requiere conciliación, no reintento.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTenantMismatch) || errors.Is(err, ErrValuationLayerExhausted)
}
