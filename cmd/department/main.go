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
	"staffsync/internal/guard"
	"staffsync/internal/infrastructure/postgres"
	"staffsync/internal/infrastructure/remote"
	"staffsync/internal/logger"
	"staffsync/internal/pkg/clock"
	"staffsync/internal/usecase"
)

const consumerName = "department-service"

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
		log.Error("department service stopped", zap.Error(err))
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
	if err := postgres.Migrate(pgPool, "department", log); err != nil {
		return err
	}

	departmentRepo := postgres.NewDepartmentRepository(pgPool)
	inboxRepo := postgres.NewInboxRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	employees := remote.NewEmployeeClient(cfg.Remote.EmployeeURL, cfg.Remote.Timeout, remote.BreakerConfig{
		ConsecutiveFailures: cfg.Remote.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.Remote.Breaker.OpenTimeout,
	}, log)

	// An unreachable employee service must not block department deletes.
	deleteGuard := guard.NewReferenceCountGuard(employees, guard.ReferenceCountConfig{
		Policy:    guard.FailOpen,
		Timeout:   cfg.Remote.Timeout,
		Dependent: "employee",
		Parent:    "department",
	}, log)

	handlers := api.NewDepartmentHandlers(
		usecase.NewCreateDepartment(departmentRepo),
		usecase.NewGetDepartment(departmentRepo),
		usecase.NewDeleteDepartment(departmentRepo, deleteGuard, log),
		usecase.NewListDepartmentEmployees(departmentRepo, employees),
		log,
	)
	events := api.NewEventHandlers(
		usecase.NewApplyEmployeeEvent(consumerName, txManager, inboxRepo, nil, clock.NewRealClock(), log),
		log,
	)

	return httpserver.Run(ctx, cfg.HTTP, api.NewDepartmentRouter(handlers, events, log), log)
}
