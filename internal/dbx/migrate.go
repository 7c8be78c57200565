package dbx

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp runs every pending migration. Used by `migrations run`.
func MigrateUp(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return goose.Up(db, "migrations")
}

// MigrateDown rolls back n migrations. Used by `migrations undo <n>`.
func MigrateDown(db *sql.DB, n int) error {
	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	for i := 0; i < n; i++ {
		if err := goose.Down(db, "migrations"); err != nil {
			return fmt.Errorf("migration undo step %d/%d: %w", i+1, n, err)
		}
	}
	return nil
}
