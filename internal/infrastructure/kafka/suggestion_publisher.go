package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	appinv "github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

var _ appinv.SuggestionPublisher = (*SuggestionPublisher)(nil)

// Tipo y versión del evento publicado (encabezados ce-*).
const (
	EventType   = "inventory.replenishment.suggested"
	SpecVersion = "1.0"
	contentType = "application/json"
)

// ErrBrokerUnavailable el circuito está abierto: no se intenta escribir.
var ErrBrokerUnavailable = errors.New("broker de sugerencias no disponible")

// MessageWriter lo que el publicador necesita de *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config parámetros del publicador.
type Config struct {
	Brokers      []string
	Topic        string
	Source       string // ce-source, p.ej. "inventario-ledger"
	WriteTimeout time.Duration
	// Fallos consecutivos que abren el circuito y tiempo hasta volver a probar.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// SuggestionPublisher publica sugerencias de reposición como eventos JSON en Kafka,
// una por mensaje con clave tenant/producto, detrás de un circuit breaker.
type SuggestionPublisher struct {
	writer MessageWriter
	cb     *gobreaker.CircuitBreaker
	cfg    Config
	log    zerolog.Logger
	now    func() time.Time
}

// NewSuggestionPublisher crea el publicador con un kafka.Writer síncrono sobre cfg.Brokers.
func NewSuggestionPublisher(cfg Config, log zerolog.Logger) *SuggestionPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	}
	return NewSuggestionPublisherWithWriter(w, cfg, log)
}

// NewSuggestionPublisherWithWriter permite inyectar el writer (tests).
func NewSuggestionPublisherWithWriter(w MessageWriter, cfg Config, log zerolog.Logger) *SuggestionPublisher {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Source == "" {
		cfg.Source = "inventario-ledger"
	}
	l := log.With().Str("component", "kafka_publisher").Str("topic", cfg.Topic).Logger()
	threshold := cfg.FailureThreshold
	settings := gobreaker.Settings{
		Name:        "kafka:" + cfg.Topic,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("cambio de estado del circuit breaker")
		},
	}
	return &SuggestionPublisher{
		writer: w,
		cb:     gobreaker.NewCircuitBreaker(settings),
		cfg:    cfg,
		log:    l,
		now:    time.Now,
	}
}

// suggestionEvent cuerpo del mensaje (envelope estilo CloudEvents con datos en línea).
type suggestionEvent struct {
	SpecVersion     string         `json:"specversion"`
	Type            string         `json:"type"`
	Source          string         `json:"source"`
	ID              string         `json:"id"`
	Time            time.Time      `json:"time"`
	Subject         string         `json:"subject"`
	DataContentType string         `json:"datacontenttype"`
	Data            suggestionData `json:"data"`
}

type suggestionData struct {
	RuleID            string    `json:"ruleId"`
	TenantID          string    `json:"tenantId"`
	ProductID         string    `json:"productId"`
	WarehouseID       *string   `json:"warehouseId,omitempty"`
	AvailableQuantity int64     `json:"availableQuantity"`
	ReservedQuantity  int64     `json:"reservedQuantity"`
	IncomingQuantity  int64     `json:"incomingQuantity"`
	EffectiveStock    int64     `json:"effectiveStock"`
	ReorderPoint      int64     `json:"reorderPoint"`
	SuggestedQuantity int64     `json:"suggestedQuantity"`
	LeadTimeDays      int32     `json:"leadTimeDays"`
	ExpectedBy        time.Time `json:"expectedBy"`
	Priority          int       `json:"priority"`
	EvaluatedAt       time.Time `json:"evaluatedAt"`
}

// Publish escribe todas las sugerencias en una sola llamada.
func (p *SuggestionPublisher) Publish(ctx context.Context, suggestions []*entity.ReplenishmentSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(suggestions))
	for _, s := range suggestions {
		msg, err := p.toMessage(s)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	_, err := p.cb.Execute(func() (interface{}, error) {
		wctx := ctx
		if p.cfg.WriteTimeout > 0 {
			var cancel context.CancelFunc
			wctx, cancel = context.WithTimeout(ctx, p.cfg.WriteTimeout)
			defer cancel()
		}
		return nil, p.writer.WriteMessages(wctx, msgs...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("publish suggestions to %s: %w", p.cfg.Topic, err)
	}
	p.log.Debug().Int("suggestions", len(msgs)).Msg("sugerencias publicadas")
	return nil
}

func (p *SuggestionPublisher) toMessage(s *entity.ReplenishmentSuggestion) (kafka.Message, error) {
	now := p.now().UTC()
	subject := s.TenantID + "/" + s.ProductID
	ev := suggestionEvent{
		SpecVersion:     SpecVersion,
		Type:            EventType,
		Source:          p.cfg.Source,
		ID:              uuid.New().String(),
		Time:            now,
		Subject:         subject,
		DataContentType: contentType,
		Data: suggestionData{
			RuleID:            s.RuleID,
			TenantID:          s.TenantID,
			ProductID:         s.ProductID,
			WarehouseID:       s.WarehouseID,
			AvailableQuantity: s.AvailableQuantity,
			ReservedQuantity:  s.ReservedQuantity,
			IncomingQuantity:  s.IncomingQuantity,
			EffectiveStock:    s.EffectiveStock,
			ReorderPoint:      s.ReorderPoint,
			SuggestedQuantity: s.SuggestedQuantity,
			LeadTimeDays:      s.LeadTimeDays,
			ExpectedBy:        s.ExpectedBy,
			Priority:          s.Priority,
			EvaluatedAt:       s.EvaluatedAt,
		},
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal suggestion %s: %w", s.RuleID, err)
	}
	return kafka.Message{
		Key:   []byte(subject),
		Value: data,
		Headers: []kafka.Header{
			{Key: "ce-specversion", Value: []byte(ev.SpecVersion)},
			{Key: "ce-type", Value: []byte(ev.Type)},
			{Key: "ce-source", Value: []byte(ev.Source)},
			{Key: "ce-id", Value: []byte(ev.ID)},
			{Key: "ce-time", Value: []byte(now.Format(time.RFC3339))},
			{Key: "ce-tenantid", Value: []byte(s.TenantID)},
			{Key: "content-type", Value: []byte(contentType)},
		},
		Time: now,
	}, nil
}

// State estado del circuit breaker (para /health).
func (p *SuggestionPublisher) State() string {
	return p.cb.State().String()
}

// Close cierra el writer.
func (p *SuggestionPublisher) Close() error {
	return p.writer.Close()
}
