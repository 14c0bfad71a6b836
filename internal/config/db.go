package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/baechuer/meeting-machine/internal/logger"
)

// Pool sizing for the shared handle. Signup holds a connection only for the
// duplicate check and the insert, never across the CRM call.
const (
	dbMaxOpen     = 20
	dbMaxIdle     = 10
	dbIdleTimeout = 5 * time.Minute
	dbMaxLifetime = time.Hour
	dbPingTimeout = 3 * time.Second
)

var errEmptyDSN = errors.New("db: empty DSN")

// NewDB parses dsn with pgx, opens a pooled database/sql handle on top of it
// and pings once. With debug set it logs who and where it connected.
func NewDB(dsn string, debug bool) (*sql.DB, error) {
	if dsn == "" {
		return nil, errEmptyDSN
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", err)
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(dbMaxOpen)
	db.SetMaxIdleConns(dbMaxIdle)
	db.SetConnMaxIdleTime(dbIdleTimeout)
	db.SetConnMaxLifetime(dbMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: ping %s:%d: %w", connCfg.Host, connCfg.Port, err)
	}

	if debug {
		logConnection(ctx, db)
	}
	return db, nil
}

func logConnection(ctx context.Context, db *sql.DB) {
	var user, name, version string
	err := db.QueryRowContext(ctx,
		`SELECT current_user, current_database(), current_setting('server_version')`,
	).Scan(&user, &name, &version)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("db connected; identity query failed")
		return
	}
	logger.Logger.Info().
		Str("db_user", user).
		Str("db_name", name).
		Str("db_version", version).
		Msg("db connected")
}
