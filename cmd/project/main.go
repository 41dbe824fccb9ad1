package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"staffsync/internal/api"
	"staffsync/internal/application/factories/infrastructure"
	"staffsync/internal/application/httpserver"
	"staffsync/internal/config"
	"staffsync/internal/consumer"
	"staffsync/internal/guard"
	"staffsync/internal/infrastructure/kafka"
	"staffsync/internal/infrastructure/postgres"
	"staffsync/internal/infrastructure/remote"
	"staffsync/internal/logger"
	"staffsync/internal/pkg/clock"
	"staffsync/internal/usecase"
)

const consumerName = "project-service"

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, cmp.Or(cfg.App.Name, consumerName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("project service stopped", zap.Error(err))
		os.Exit(1)
	}
	log.Info("server exiting")
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
	if err := postgres.Migrate(pgPool, "project", log); err != nil {
		return err
	}

	projectRepo := postgres.NewProjectRepository(pgPool)
	memberRepo := postgres.NewMemberRepository(pgPool)
	inboxRepo := postgres.NewInboxRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)
	clk := clock.NewRealClock()

	employees := remote.NewEmployeeClient(cfg.Remote.EmployeeURL, cfg.Remote.Timeout, remote.BreakerConfig{
		ConsecutiveFailures: cfg.Remote.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.Remote.Breaker.OpenTimeout,
	}, log)

	linkGuard := guard.NewExistenceGuard(employees, guard.ExistenceConfig{
		Policy:  guard.FailClosed,
		Timeout: cfg.Remote.Timeout,
		Entity:  "employee",
	}, log)

	applyUC := usecase.NewApplyEmployeeEvent(consumerName, txManager, inboxRepo, memberRepo, clk, log)

	handlers := api.NewProjectHandlers(
		usecase.NewCreateProject(projectRepo),
		usecase.NewAddMember(projectRepo, memberRepo, linkGuard, clk, log),
		usecase.NewListMembers(projectRepo, memberRepo, employees, log),
		usecase.NewRemoveMember(memberRepo, log),
		log,
	)
	router := api.NewProjectRouter(handlers, api.NewEventHandlers(applyUC, log), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, cfg.HTTP, router, log)
	})

	if cfg.Kafka.Enabled {
		kafkaConsumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.StartOffset)
		defer kafkaConsumer.Close()

		log.Info("employee event consumer started",
			zap.String("topic", cfg.Kafka.Topic),
			zap.String("group_id", cfg.Kafka.GroupID),
		)
		events := consumer.NewEmployeeEvents(kafkaConsumer, applyUC, consumer.Config{
			MaxRetries: 5,
			BaseDelay:  time.Second,
		}, log)
		g.Go(func() error {
			return events.Run(gctx)
		})
	}

	return g.Wait()
}
