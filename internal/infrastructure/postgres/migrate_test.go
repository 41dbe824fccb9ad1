package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrations(t *testing.T) {
	for _, service := range Services {
		t.Run(service, func(t *testing.T) {
			entries, err := fs.ReadDir(migrationsFS, "migrations/"+service)
			require.NoError(t, err)

			var up, down int
			for _, e := range entries {
				switch {
				case strings.HasSuffix(e.Name(), ".up.sql"):
					up++
				case strings.HasSuffix(e.Name(), ".down.sql"):
					down++
				}
			}
			assert.Positive(t, up)
			assert.Equal(t, up, down, "every up migration has a down")
		})
	}
}

func TestMigrate_UnknownService(t *testing.T) {
	err := Migrate(nil, "payroll", zap.NewNop())
	assert.ErrorContains(t, err, `unknown service "payroll"`)
}

func TestMigrationsTable_PerService(t *testing.T) {
	seen := make(map[string]bool)
	for _, service := range Services {
		table := migrationsTable(service)
		assert.False(t, seen[table], "services must not share %s", table)
		seen[table] = true
	}
	assert.Equal(t, "schema_migrations_project", migrationsTable("project"))
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "employees"}
	assert.Equal(t, "postgres://u:p@db:5432/employees?sslmode=disable", cfg.dsn())

	cfg.SSLMode = "require"
	assert.Equal(t, "postgres://u:p@db:5432/employees?sslmode=require", cfg.dsn())
}
