// Package postgres implements a Postgres-backed storage.Backend using pgx v5
// and a pgxpool connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"natto/internal/query"
	"natto/internal/schema"
	"natto/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN              string        // connection string for pgxpool
	Schema           string        // schema to discover and set as search_path; default "public"
	MaxConns         int           // pool size; zero keeps the pgxpool default
	StatementTimeout time.Duration // server-side statement_timeout; zero disables
	DiscoveryWorkers int
}

// pgPool is the subset of *pgxpool.Pool the repository uses. Tests replace
// it with a fake to stay hermetic.
type pgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// Repository is a Postgres-backed implementation of storage.Backend.
type Repository struct {
	pool pgPool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	params := pcfg.ConnConfig.RuntimeParams
	params["search_path"] = cfg.Schema
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	params["application_name"] = "natto"

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", describe(err))
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// Dialect implements storage.Backend.
func (r *Repository) Dialect() query.Dialect { return query.Postgres }

// Query runs a statement and returns each row's decoded values.
func (r *Repository) Query(ctx context.Context, sql string, args ...any) ([][]any, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", describe(err))
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("decode row: %w", describe(err))
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", describe(err))
	}
	return out, nil
}

// Exec runs a statement and returns the affected row count.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", describe(err))
	}
	return tag.RowsAffected(), nil
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the pool.
func (r *Repository) Close() { r.pool.Close() }

// pgDetailError carries the server's DETAIL line alongside the error.
type pgDetailError struct {
	err *pgconn.PgError
}

func (e *pgDetailError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.err.Message, e.err.Detail, e.err.SQLState())
}

func (e *pgDetailError) Unwrap() error { return e.err }

// describe surfaces the DETAIL of server errors, which pgx leaves out of
// PgError.Error().
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return &pgDetailError{err: pgErr}
	}
	return err
}

const listTablesSQL = `
SELECT table_name::text
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

const listColumnsSQL = `
SELECT
    c.column_name::text,
    c.data_type::text,
    c.is_nullable = 'YES',
    c.column_default::text,
    c.ordinal_position::int,
    EXISTS (
        SELECT 1
        FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage k
          ON k.constraint_name = tc.constraint_name
         AND k.table_schema = tc.table_schema
         AND k.table_name = tc.table_name
        WHERE tc.constraint_type = 'PRIMARY KEY'
          AND k.table_schema = c.table_schema
          AND k.table_name = c.table_name
          AND k.column_name = c.column_name
    ),
    EXISTS (
        SELECT 1
        FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage k
          ON k.constraint_name = tc.constraint_name
         AND k.table_schema = tc.table_schema
         AND k.table_name = tc.table_name
        WHERE tc.constraint_type = 'FOREIGN KEY'
          AND k.table_schema = c.table_schema
          AND k.table_name = c.table_name
          AND k.column_name = c.column_name
    )
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

// Discover lists the base tables of the configured schema and reads their
// columns, one metadata query per table, run concurrently.
func (r *Repository) Discover(ctx context.Context) ([]schema.Table, error) {
	rows, err := r.pool.Query(ctx, listTablesSQL, r.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", describe(err))
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", describe(err))
	}
	return storage.DiscoverTables(ctx, names, r.cfg.DiscoveryWorkers, r.loadTable)
}

func (r *Repository) loadTable(ctx context.Context, name string) (schema.Table, bool, error) {
	rows, err := r.pool.Query(ctx, listColumnsSQL, r.cfg.Schema, name)
	if err != nil {
		return schema.Table{}, false, describe(err)
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.ColumnInfo, error) {
		var c storage.ColumnInfo
		err := row.Scan(&c.Name, &c.DataType, &c.Nullable, &c.Default, &c.Ordinal, &c.PrimaryKey, &c.ForeignKey)
		return c, err
	})
	if err != nil {
		return schema.Table{}, false, describe(err)
	}
	t, ok := storage.BuildTable(name, cols, schema.ParseDataType)
	return t, ok, nil
}
