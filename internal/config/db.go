package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/baechuer/totp-auth/internal/logger"
)

const (
	dbMaxOpen     = 20
	dbMaxIdle     = 10
	dbIdleTime    = 5 * time.Minute
	dbLifetime    = time.Hour
	dbPingTimeout = 3 * time.Second
)

// NewDB opens a database/sql pool over the pgx driver and pings it. ctx
// bounds the ping; without a deadline a short default applies so startup
// fails fast on a dead server.
func NewDB(ctx context.Context, dsn string, debug bool) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty postgres DSN")
	}
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres DSN: %w", err)
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(dbMaxOpen)
	db.SetMaxIdleConns(dbMaxIdle)
	db.SetConnMaxIdleTime(dbIdleTime)
	db.SetConnMaxLifetime(dbLifetime)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbPingTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s:%d: %w", connCfg.Host, connCfg.Port, err)
	}

	if debug {
		var version string
		_ = db.QueryRowContext(ctx, "SHOW server_version").Scan(&version)
		logger.Logger.Debug().
			Str("db_host", connCfg.Host).
			Uint16("db_port", connCfg.Port).
			Str("db_name", connCfg.Database).
			Str("db_user", connCfg.User).
			Str("db_version", version).
			Msg("postgres connected")
	}
	return db, nil
}
