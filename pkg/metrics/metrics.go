package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa las métricas del ledger. Un *Metrics nil es válido: todos los
// métodos de registro son no-op, lo que simplifica los tests.
type Metrics struct {
	registry *prometheus.Registry

	MovesPosted         *prometheus.CounterVec
	MovesRejected       *prometheus.CounterVec
	IdempotentReplays   prometheus.Counter
	ConcurrencyRetries  *prometheus.CounterVec
	FatalErrors         *prometheus.CounterVec
	ReservationOps      *prometheus.CounterVec
	Rebaselines         *prometheus.CounterVec
	SuggestionsEmitted  prometheus.Counter
	ReorderScanDuration prometheus.Histogram
	PublishFailures     prometheus.Counter
}

// Config configuración de métricas.
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig valores por defecto.
func DefaultConfig() *Config {
	return &Config{Namespace: "inventory", Subsystem: "ledger"}
}

// New crea y registra las métricas en un registry propio.
func New(cfg *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.MovesPosted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "moves_posted_total",
		Help: "Movimientos posteados en el ledger",
	}, []string{"type"})

	m.MovesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "moves_rejected_total",
		Help: "Movimientos rechazados por tipo de error",
	}, []string{"reason"})

	m.IdempotentReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "idempotent_replays_total",
		Help: "Posteos repetidos resueltos por clave de idempotencia",
	})

	m.ConcurrencyRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "concurrency_retries_total",
		Help: "Reintentos por conflicto de versión optimista",
	}, []string{"operation"})

	m.FatalErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "fatal_errors_total",
		Help: "Invariantes rotos (requieren conciliación)",
	}, []string{"kind"})

	m.ReservationOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "reservation_operations_total",
		Help: "Operaciones de reserva por tipo y resultado",
	}, []string{"operation", "status"})

	m.Rebaselines = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "valuation_rebaselines_total",
		Help: "Cambios de método de valoración",
	}, []string{"method"})

	m.SuggestionsEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "reorder_suggestions_total",
		Help: "Sugerencias de reposición generadas",
	})

	m.ReorderScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name:    "reorder_scan_duration_seconds",
		Help:    "Duración de los barridos de reglas de reposición",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	m.PublishFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
		Name: "reorder_publish_failures_total",
		Help: "Fallos publicando sugerencias de reposición",
	})

	registry.MustRegister(
		m.MovesPosted, m.MovesRejected, m.IdempotentReplays, m.ConcurrencyRetries,
		m.FatalErrors, m.ReservationOps, m.Rebaselines, m.SuggestionsEmitted,
		m.ReorderScanDuration, m.PublishFailures,
	)
	return m
}

// Handler expone el registry en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry devuelve el registry subyacente.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordMovePosted(moveType string) {
	if m == nil {
		return
	}
	m.MovesPosted.WithLabelValues(moveType).Inc()
}

func (m *Metrics) RecordMoveRejected(reason string) {
	if m == nil {
		return
	}
	m.MovesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordReplay() {
	if m == nil {
		return
	}
	m.IdempotentReplays.Inc()
}

func (m *Metrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.ConcurrencyRetries.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordFatal(kind string) {
	if m == nil {
		return
	}
	m.FatalErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordReservation(operation, status string) {
	if m == nil {
		return
	}
	m.ReservationOps.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) RecordRebaseline(method string) {
	if m == nil {
		return
	}
	m.Rebaselines.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordReorderScan(seconds float64, suggestions int) {
	if m == nil {
		return
	}
	m.ReorderScanDuration.Observe(seconds)
	m.SuggestionsEmitted.Add(float64(suggestions))
}

func (m *Metrics) RecordPublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}
