package main

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"staffsync/internal/application/factories/infrastructure"
	"staffsync/internal/application/httpserver"
	"staffsync/internal/config"
	"staffsync/internal/infrastructure/postgres"
	"staffsync/internal/logger"
	"staffsync/internal/pkg/clock"
	"staffsync/internal/relay"
)

const producerName = "employee-service"

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, cmp.Or(cfg.App.Name, "outbox-relay"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("relay stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("relay exited")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg, log)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		return err
	}

	subscribers := make([]relay.Subscriber, 0, len(cfg.Relay.Subscribers)+1)
	for _, url := range cfg.Relay.Subscribers {
		subscribers = append(subscribers, relay.NewHTTPSubscriber(url, nil))
	}
	if producer := infraFactory.KafkaProducer(); producer != nil {
		subscribers = append(subscribers, relay.NewKafkaSubscriber(producer, producerName))
	}
	for _, s := range subscribers {
		log.Info("subscriber registered", zap.String("subscriber", s.Name()))
	}

	r := relay.New(postgres.NewOutboxRepository(pgPool), subscribers, clock.NewRealClock(), relay.Config{
		PollInterval:    cfg.Relay.PollInterval,
		MaxBackoff:      cfg.Relay.MaxBackoff,
		DeliveryTimeout: cfg.Relay.DeliveryTimeout,
		BatchSize:       cfg.Relay.BatchSize,
		ClaimLease:      cfg.Relay.ClaimLease,
	}, log)

	mux := chi.NewRouter()
	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Run(gctx) })
	g.Go(func() error { return httpserver.Run(gctx, cfg.HTTP, mux, log) })
	return g.Wait()
}
