package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"staffsync/internal/api"
	"staffsync/internal/application/factories/infrastructure"
	"staffsync/internal/application/httpserver"
	"staffsync/internal/config"
	"staffsync/internal/infrastructure/postgres"
	"staffsync/internal/infrastructure/remote"
	"staffsync/internal/logger"
	"staffsync/internal/pkg/clock"
	"staffsync/internal/usecase"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, cmp.Or(cfg.App.Name, "employee-service"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("employee service stopped", zap.Error(err))
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
	if err := postgres.Migrate(pgPool, "employee", log); err != nil {
		return err
	}

	idempotencyStore, err := infraFactory.IdempotencyStore(ctx)
	if err != nil {
		return err
	}

	// Repositories
	employeeRepo := postgres.NewEmployeeRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	departments := remote.NewDepartmentClient(cfg.Remote.DepartmentURL, cfg.Remote.Timeout, remote.BreakerConfig{
		ConsecutiveFailures: cfg.Remote.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.Remote.Breaker.OpenTimeout,
	}, log)

	clk := clock.NewRealClock()

	// UseCases
	handlers := api.NewEmployeeHandlers(
		usecase.NewCreateEmployee(txManager, employeeRepo, outboxRepo, idempotencyStore, clk, log),
		usecase.NewGetEmployee(employeeRepo, departments, log),
		usecase.NewUpdateEmployee(txManager, employeeRepo, outboxRepo, clk, log),
		usecase.NewDeleteEmployee(txManager, employeeRepo, outboxRepo, clk),
		usecase.NewCountEmployees(employeeRepo),
		usecase.NewListEmployees(employeeRepo),
		log,
	)

	return httpserver.Run(ctx, cfg.HTTP, api.NewEmployeeRouter(handlers, log), log)
}
