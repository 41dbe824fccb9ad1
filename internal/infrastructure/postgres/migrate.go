package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations
var migrationsFS embed.FS

// Services that own a schema. Each keeps its own version table, so they may
// share one database.
var Services = []string{"employee", "department", "project"}

func migrationsTable(service string) string {
	return "schema_migrations_" + service
}

// Migrate applies the embedded migrations of service to the database behind pool.
func Migrate(pool *pgxpool.Pool, service string, log *zap.Logger) error {
	if !knownService(service) {
		return fmt.Errorf("migrate: unknown service %q", service)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+service)
	if err != nil {
		return fmt.Errorf("open migrations source: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{
		MigrationsTable: migrationsTable(service),
	})
	if err != nil {
		return fmt.Errorf("failed to create pgx driver instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no new migrations", zap.String("service", service))
			return nil
		}

		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			return fmt.Errorf("migration failed: dirty database version %d", dirtyErr.Version)
		}

		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, _ := m.Version()
	log.Info("migrations applied", zap.String("service", service), zap.Uint("version", version))
	return nil
}

func knownService(service string) bool {
	for _, s := range Services {
		if s == service {
			return true
		}
	}
	return false
}
