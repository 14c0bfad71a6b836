//go:build integration

package infra

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

func ResetAll(ctx context.Context, db *sql.DB, rdb *goredis.Client) error {
	if _, err := db.ExecContext(ctx, `TRUNCATE TABLE users;`); err != nil {
		return fmt.Errorf("reset postgres: %w", err)
	}
	if err := rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("reset redis: %w", err)
	}
	return nil
}

func CountUsers(ctx context.Context, db *sql.DB, email string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = $1`, email).Scan(&n)
	return n, err
}
