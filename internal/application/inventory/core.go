package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
	"github.com/jhoicas/inventario-ledger/pkg/config"
	"github.com/jhoicas/inventario-ledger/pkg/metrics"
)

// Options parámetros del núcleo (ver pkg/config, sección Ledger).
type Options struct {
	DefaultCurrency    string
	MaxRetries         int
	RetryInitial       time.Duration
	RetryMaxInterval   time.Duration
	UomTolerance       decimal.Decimal
	SafetyStockMode    inventory.SafetyStockMode
	ReorderConcurrency int
	IncomingSupply     IncomingSupply
	Now                func() time.Time
}

// DefaultOptions valores por defecto.
func DefaultOptions() Options {
	return Options{
		DefaultCurrency:    "COP",
		MaxRetries:         5,
		RetryInitial:       5 * time.Millisecond,
		RetryMaxInterval:   200 * time.Millisecond,
		UomTolerance:       decimal.New(1, -6),
		SafetyStockMode:    inventory.SafetyStockEmbedded,
		ReorderConcurrency: 4,
		Now:                time.Now,
	}
}

// OptionsFromConfig traduce la sección Ledger de la configuración.
func OptionsFromConfig(c config.LedgerConfig) (Options, error) {
	o := DefaultOptions()
	tol, err := decimal.NewFromString(c.UomTolerance)
	if err != nil || !tol.IsPositive() {
		return o, fmt.Errorf("LEDGER_UOM_TOLERANCE inválida: %q", c.UomTolerance)
	}
	o.DefaultCurrency = c.DefaultCurrency
	o.MaxRetries = c.MaxRetries
	o.RetryInitial = c.RetryInitial
	o.RetryMaxInterval = c.RetryMaxInterval
	o.UomTolerance = tol
	o.SafetyStockMode = inventory.SafetyStockMode(c.SafetyStockMode)
	o.ReorderConcurrency = c.ReorderConcurrency
	return o.normalized(), nil
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = d.DefaultCurrency
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = d.RetryInitial
	}
	if o.RetryMaxInterval <= 0 {
		o.RetryMaxInterval = d.RetryMaxInterval
	}
	if !o.UomTolerance.IsPositive() {
		o.UomTolerance = d.UomTolerance
	}
	if o.SafetyStockMode == "" {
		o.SafetyStockMode = d.SafetyStockMode
	}
	if o.ReorderConcurrency <= 0 {
		o.ReorderConcurrency = d.ReorderConcurrency
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// core estado compartido por los casos de uso.
type core struct {
	repos   Repositories
	opts    Options
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func newCore(repos Repositories, opts Options, log zerolog.Logger, m *metrics.Metrics) *core {
	return &core{repos: repos, opts: opts.normalized(), log: log, metrics: m}
}

func (c *core) now() time.Time {
	return c.opts.Now().UTC()
}

// withRetry reintenta fn mientras falle con ErrConcurrentModification, hasta MaxRetries
// veces con backoff exponencial. Cualquier otro error se devuelve de inmediato.
func (c *core) withRetry(ctx context.Context, op string, key entity.PositionKey, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.RetryInitial
	eb.MaxInterval = c.opts.RetryMaxInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.opts.MaxRetries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if domain.IsRetryable(err) {
			c.metrics.RecordRetry(op)
			c.log.Debug().Str("op", op).Str("position", key.String()).Int("attempt", attempt).
				Msg("conflicto de versión, reintentando")
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err != nil {
		c.reportFatal(op, key, err)
	}
	return err
}

// reportFatal deja rastro de los invariantes rotos para la conciliación.
func (c *core) reportFatal(op string, key entity.PositionKey, err error) {
	if !domain.IsFatal(err) {
		return
	}
	kind := "tenant_mismatch"
	if errors.Is(err, domain.ErrValuationLayerExhausted) {
		kind = "valuation_layer_exhausted"
	}
	c.metrics.RecordFatal(kind)
	ev := c.log.Error().Err(err).Str("op", op).Str("tenant_id", key.TenantID).Str("product_id", key.ProductID)
	for k, v := range domain.DetailsOf(err) {
		ev = ev.Interface(k, v)
	}
	ev.Msg("invariante roto: requiere conciliación")
}
