package database

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/blogem/hard-delete-gate/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	gooseSetup    sync.Once
	gooseSetupErr error
)

// RunMigrations applies every pending migration in migrations/
func RunMigrations(db *sql.DB) error {
	gooseSetup.Do(func() {
		goose.SetBaseFS(migrationsFS)
		goose.SetLogger(logging.Logger)
		gooseSetupErr = goose.SetDialect("sqlite3")
	})
	if gooseSetupErr != nil {
		return fmt.Errorf("failed to configure migrations: %w", gooseSetupErr)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Version returns the currently applied migration version
func Version(db *sql.DB) (int64, error) {
	return goose.GetDBVersion(db)
}
