package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"staffsync/internal/application/factories/infrastructure"
	"staffsync/internal/config"
	"staffsync/internal/infrastructure/postgres"
	"staffsync/internal/logger"
)

func main() {
	service := flag.String("service", "", "schema to migrate: employee, department or project")
	flag.Parse()

	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, "migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	infraFactory := infrastructure.NewFactory(cfg, log)
	defer infraFactory.Close()

	pool, err := infraFactory.Postgres(context.Background())
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}

	if err := postgres.Migrate(pool, *service, log); err != nil {
		log.Fatal("migration failed", zap.String("service", *service), zap.Error(err))
	}
}
