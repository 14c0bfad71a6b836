package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/baechuer/meeting-machine/internal/infrastructure/db/postgres/migrations"
)

var gooseOnce sync.Once

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies the embedded migrations. Applied versions are skipped, so
// it runs on every boot.
func Migrate(ctx context.Context, db *sql.DB) error {
	var setupErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		setupErr = goose.SetDialect("pgx")
	})
	if setupErr != nil {
		return fmt.Errorf("migrate: %w", setupErr)
	}
	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
