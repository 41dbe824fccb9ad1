package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"staffsync/internal/apperrors"
	domainEvent "staffsync/internal/domain/event"
	"staffsync/internal/infrastructure/kafka"
	"staffsync/internal/relay"
	"staffsync/internal/usecase"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consumer_employee_events_total",
		Help: "Employee events taken off the topic, by outcome",
	}, []string{"outcome"})
	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "consumer_processing_duration_seconds",
		Help:    "Time taken to apply one employee event",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
	})
)

// Reader is the part of the Kafka consumer the loop needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Applier dedupes and applies one employee event.
type Applier interface {
	Execute(ctx context.Context, evt usecase.IncomingEvent) (bool, error)
}

type Config struct {
	MaxRetries int
	// BaseDelay doubles on every retry.
	BaseDelay  time.Duration
	FetchPause time.Duration
}

// EmployeeEvents reads the employee topic and applies each event. A message is
// committed once applied, once recognised as a duplicate, or once dropped.
type EmployeeEvents struct {
	reader  Reader
	applier Applier
	cfg     Config
	log     *zap.Logger
}

func NewEmployeeEvents(reader Reader, applier Applier, cfg Config, log *zap.Logger) *EmployeeEvents {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.FetchPause <= 0 {
		cfg.FetchPause = time.Second
	}
	return &EmployeeEvents{reader: reader, applier: applier, cfg: cfg, log: log}
}

// Run blocks until ctx is cancelled.
func (c *EmployeeEvents) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("failed to fetch message", zap.Error(err))
			if !sleep(ctx, c.cfg.FetchPause) {
				return nil
			}
			continue
		}

		if !c.handle(ctx, msg) {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("failed to commit kafka message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle reports false only when ctx was cancelled mid-retry; the message is
// then left uncommitted for the next member of the group.
func (c *EmployeeEvents) handle(ctx context.Context, msg kafkago.Message) bool {
	evt, err := decode(msg)
	if err != nil {
		c.log.Error("dropping undecodable message", zap.Int64("offset", msg.Offset), zap.Error(err))
		eventsProcessed.WithLabelValues("dropped").Inc()
		return true
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.BaseDelay << (attempt - 1)
			c.log.Info("retrying employee event",
				zap.String("event_id", evt.ID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			if !sleep(ctx, backoff) {
				return false
			}
		}

		started := time.Now()
		applied, err := c.applier.Execute(ctx, evt)
		if err == nil {
			processingDuration.Observe(time.Since(started).Seconds())
			outcome := "duplicate"
			if applied {
				outcome = "applied"
			}
			eventsProcessed.WithLabelValues(outcome).Inc()
			c.log.Debug("employee event handled", zap.String("event_id", evt.ID), zap.String("type", evt.Type), zap.Bool("applied", applied))
			return true
		}

		if errors.Is(err, apperrors.ErrInvalidInput) || attempt >= c.cfg.MaxRetries {
			c.log.Error("dropping employee event",
				zap.String("event_id", evt.ID),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			eventsProcessed.WithLabelValues("dropped").Inc()
			return true
		}
		c.log.Warn("employee event failed", zap.String("event_id", evt.ID), zap.Error(err))
	}
}

// decode prefers the envelope and falls back to the relay headers.
func decode(msg kafkago.Message) (usecase.IncomingEvent, error) {
	var env domainEvent.Message
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return usecase.IncomingEvent{}, err
	}

	payload, err := env.RawPayload()
	if err != nil {
		return usecase.IncomingEvent{}, err
	}

	evt := usecase.IncomingEvent{ID: env.ID, Type: env.Type, Payload: payload}
	if evt.ID == "" {
		evt.ID = kafka.Header(msg, relay.HeaderEventID)
	}
	if evt.Type == "" {
		evt.Type = kafka.Header(msg, relay.HeaderEventType)
	}
	return evt, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
