package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"staffsync/internal/domain/outbox"
	"staffsync/internal/pkg/clock"
)

var (
	eventsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_outbox_events_sent_total",
		Help: "Outbox events delivered to every subscriber",
	})
	eventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_outbox_events_failed_total",
		Help: "Outbox event attempts that failed for at least one subscriber",
	})
	deliveryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_delivery_errors_total",
		Help: "Failed deliveries by subscriber",
	}, []string{"subscriber"})
	claimsLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_claims_lost_total",
		Help: "Claimed events taken over by another pass before this one finished them",
	})
	stateUpdateErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_state_update_errors_total",
		Help: "Outbox events whose delivery outcome could not be persisted",
	})
	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_pass_duration_seconds",
		Help:    "Duration of one relay pass",
		Buckets: prometheus.DefBuckets,
	})
)

type Config struct {
	PollInterval    time.Duration
	MaxBackoff      time.Duration
	DeliveryTimeout time.Duration
	BatchSize       int
	// ClaimLease keeps a claimed batch away from other passes while it waits.
	// Each event's lease is renewed right before delivery to cover every
	// subscriber's DeliveryTimeout plus ClaimLease.
	ClaimLease time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = outbox.DefaultMaxBackoff
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.ClaimLease <= 0 {
		c.ClaimLease = 30 * time.Second
	}
	return c
}

// PassResult counts what one pass did.
type PassResult struct {
	Claimed           int
	Sent              int
	Failed            int
	StateUpdateFailed int
	// ClaimLost counts events another pass took over; their outcome is left to it.
	ClaimLost int
}

// Relay drains due outbox events to every subscriber on a fixed interval.
type Relay struct {
	store       outbox.Store
	subscribers []Subscriber
	clock       clock.Clock
	cfg         Config
	log         *zap.Logger

	// mu serializes passes within this process.
	mu sync.Mutex
}

func New(store outbox.Store, subscribers []Subscriber, clk clock.Clock, cfg Config, log *zap.Logger) *Relay {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Relay{
		store:       store,
		subscribers: subscribers,
		clock:       clk,
		cfg:         cfg.withDefaults(),
		log:         log,
	}
}

// Run triggers a pass every PollInterval until ctx is cancelled. A pass in
// flight when ctx is cancelled runs to completion.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.log.Info("outbox relay started",
		zap.Duration("poll_interval", r.cfg.PollInterval),
		zap.Int("subscribers", len(r.subscribers)),
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			res, err := r.RunOnce(context.WithoutCancel(ctx))
			if err != nil {
				r.log.Error("relay pass finished with errors", zap.Error(err))
			}
			if res.Claimed > 0 {
				r.log.Debug("relay pass",
					zap.Int("claimed", res.Claimed),
					zap.Int("sent", res.Sent),
					zap.Int("failed", res.Failed),
					zap.Int("claim_lost", res.ClaimLost),
				)
			}
		}
	}
}

// RunOnce claims due events and attempts each against every subscriber.
// Delivery failures are recorded on the event, not returned; only failures to
// claim or to persist an outcome are returned.
func (r *Relay) RunOnce(ctx context.Context) (PassResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { passDuration.Observe(time.Since(start).Seconds()) }()

	var res PassResult

	events, err := r.store.ClaimDue(ctx, r.clock.Now(), r.cfg.BatchSize, r.cfg.ClaimLease)
	if err != nil {
		return res, fmt.Errorf("claim due events: %w", err)
	}
	res.Claimed = len(events)

	var errs []error
	for _, e := range events {
		if err := r.store.ExtendClaim(ctx, e.ID, e.ClaimToken, r.clock.Now().Add(r.deliveryHold())); err != nil {
			r.recordStateError(&res, &errs, e, "renew claim of", err)
			continue
		}

		deliveryErr := r.deliver(ctx, e)
		at := r.clock.Now()

		if deliveryErr == nil {
			if err := r.store.MarkSent(ctx, e.ID, e.ClaimToken, at); err != nil {
				r.recordStateError(&res, &errs, e, "mark sent", err)
				continue
			}
			res.Sent++
			eventsSent.Inc()
			continue
		}

		// The claim fences other writers, so AttemptCount is current.
		attempts := e.AttemptCount + 1
		backoff := outbox.Backoff(attempts, r.cfg.MaxBackoff)
		r.log.Warn("outbox delivery failed",
			zap.String("event_id", e.ID),
			zap.String("event_type", e.Type),
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", backoff),
			zap.Error(deliveryErr),
		)

		if err := r.store.MarkFailed(ctx, e.ID, e.ClaimToken, attempts, at, at.Add(backoff), deliveryErr.Error()); err != nil {
			r.recordStateError(&res, &errs, e, "mark failed", err)
			continue
		}
		res.Failed++
		eventsFailed.Inc()
	}

	return res, errors.Join(errs...)
}

// deliveryHold bounds one event's delivery to every subscriber, plus ClaimLease as slack.
func (r *Relay) deliveryHold() time.Duration {
	return time.Duration(len(r.subscribers))*r.cfg.DeliveryTimeout + r.cfg.ClaimLease
}

// recordStateError counts a lost claim on its own; anything else is a failure
// to persist state and is returned from the pass.
func (r *Relay) recordStateError(res *PassResult, errs *[]error, e *outbox.Event, op string, err error) {
	if errors.Is(err, outbox.ErrClaimLost) {
		res.ClaimLost++
		claimsLost.Inc()
		r.log.Warn("outbox claim lost to another pass", zap.String("event_id", e.ID), zap.String("op", op))
		return
	}
	res.StateUpdateFailed++
	stateUpdateErrors.Inc()
	*errs = append(*errs, fmt.Errorf("%s %s: %w", op, e.ID, err))
}

// deliver attempts every subscriber in order, even after one fails, and
// returns the joined failures.
func (r *Relay) deliver(ctx context.Context, e *outbox.Event) error {
	var errs []error
	for _, sub := range r.subscribers {
		dctx, cancel := context.WithTimeout(ctx, r.cfg.DeliveryTimeout)
		err := sub.Deliver(dctx, e)
		cancel()

		if err != nil {
			deliveryErrors.WithLabelValues(sub.Name()).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", sub.Name(), err))
		}
	}
	return errors.Join(errs...)
}
