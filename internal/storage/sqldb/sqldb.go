// Package sqldb implements storage.Executor over database/sql drivers using
// sqlx. It is shared by the sqlite, mssql and mysql backends.
package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"natto/internal/storage"
)

// DB wraps a *sqlx.DB and applies a per-statement timeout.
type DB struct {
	db      *sqlx.DB
	timeout time.Duration
	name    string
}

// Options configures a pool opened by Open.
type Options struct {
	// Kind names the backend in error messages.
	Kind             string
	DSN              string
	MaxConns         int
	StatementTimeout time.Duration
}

// Open opens and pings a pool for driverName. The pool is sized from
// cfg.MaxConns when set.
func Open(ctx context.Context, driverName string, cfg Options) (*DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", cfg.Kind)
	}
	db, err := sqlx.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", cfg.Kind, err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}

	// Fail fast on invalid DSNs or unreachable servers.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", cfg.Kind, err)
	}
	return &DB{db: db, timeout: cfg.StatementTimeout, name: cfg.Kind}, nil
}

// New wraps an already open pool. Tests use it with in-process databases.
func New(db *sqlx.DB, kind string, timeout time.Duration) *DB {
	return &DB{db: db, timeout: timeout, name: kind}
}

// X exposes the pool for backend metadata queries.
func (d *DB) X() *sqlx.DB { return d.db }

// Query runs a row-returning statement and scans every row positionally.
func (d *DB) Query(ctx context.Context, sql string, args ...any) ([][]any, error) {
	ctx, cancel := storage.WithTimeout(ctx, d.timeout)
	defer cancel()

	rows, err := d.db.QueryxContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", d.name, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", d.name, err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", d.name, err)
	}
	return out, nil
}

// Exec runs a statement and returns the number of affected rows.
func (d *DB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	ctx, cancel := storage.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: exec: %w", d.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: rows affected: %w", d.name, err)
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s: ping: %w", d.name, err)
	}
	return nil
}

// Close closes the pool.
func (d *DB) Close() { _ = d.db.Close() }
