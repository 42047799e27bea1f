package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bogdansurdu/vibranium-waccanda/internal/config"
)

// DSN renders the connection settings as a postgres:// URL.
func DSN(cfg config.DB) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Pass),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// Open returns a handle backed by a single persistent connection. It does not
// dial; call Ping to find out whether the database is reachable.
//
// With sslmode=require the connection is encrypted but the server
// certificate is not validated.
func Open(cfg config.DB) (*sql.DB, error) {
	connConfig, err := pgx.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.SSLMode == "require" {
		if connConfig.TLSConfig != nil {
			connConfig.TLSConfig.InsecureSkipVerify = true
		}
		for _, fb := range connConfig.Fallbacks {
			if fb.TLSConfig != nil {
				fb.TLSConfig.InsecureSkipVerify = true
			}
		}
	}

	db := stdlib.OpenDB(*connConfig)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// Ping checks connectivity with a short timeout.
func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
