//go:build integration

package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// rebateSchemaVersion is the latest migration under db/migrations.
const rebateSchemaVersion = 1

// migrateRebateSchema brings the test database up to the rebate reference
// schema and fails if it is left dirty or at another version.
func migrateRebateSchema(databaseURL string) error {
	m, err := migrate.New("file://"+migrationsDir(), databaseURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty || version != rebateSchemaVersion {
		return fmt.Errorf("rebate schema at version %d (dirty=%t), want %d", version, dirty, rebateSchemaVersion)
	}
	return nil
}

func migrationsDir() string {
	return filepath.Join(findProjectRoot(), "db", "migrations")
}

func findProjectRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}
