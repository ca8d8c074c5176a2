// Package mysql implements a MySQL-backed storage.Backend using
// go-sql-driver/mysql through database/sql.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"natto/internal/query"
	"natto/internal/schema"
	"natto/internal/storage/sqldb"
)

// Config holds MySQL repository configuration.
type Config struct {
	// DSN in go-sql-driver form, e.g. "user:pass@tcp(localhost:3306)/app".
	// It must name a database; that database is the one discovered.
	DSN              string
	MaxConns         int
	StatementTimeout time.Duration
}

// Repository is a MySQL-backed implementation of storage.Backend.
type Repository struct {
	*sqldb.DB
	database string
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if dsn.DBName == "" {
		return nil, nil, errors.New("mysql dsn: a database name is required")
	}
	db, err := sqldb.Open(ctx, "mysql", sqldb.Options{
		Kind:             "mysql",
		DSN:              dsn.FormatDSN(),
		MaxConns:         cfg.MaxConns,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	close := func() { db.Close() }
	return &Repository{DB: db, database: dsn.DBName}, close, nil
}

// Dialect implements storage.Backend.
func (r *Repository) Dialect() query.Dialect { return query.MySQL }

const listColumnsSQL = `
SELECT
    c.TABLE_NAME AS table_name,
    c.COLUMN_NAME AS column_name,
    c.DATA_TYPE AS data_type,
    c.IS_NULLABLE = 'YES' AS nullable,
    c.COLUMN_DEFAULT AS column_default,
    c.ORDINAL_POSITION AS ordinal,
    c.COLUMN_KEY = 'PRI' AS is_pk,
    EXISTS (
        SELECT 1
        FROM information_schema.KEY_COLUMN_USAGE k
        WHERE k.TABLE_SCHEMA = c.TABLE_SCHEMA
          AND k.TABLE_NAME = c.TABLE_NAME
          AND k.COLUMN_NAME = c.COLUMN_NAME
          AND k.REFERENCED_TABLE_NAME IS NOT NULL
    ) AS is_fk
FROM information_schema.COLUMNS c
JOIN information_schema.TABLES t
  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
WHERE c.TABLE_SCHEMA = ? AND t.TABLE_TYPE = 'BASE TABLE'
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

// Discover reads every base table of the DSN's database in one query.
func (r *Repository) Discover(ctx context.Context) ([]schema.Table, error) {
	return r.DiscoverColumns(ctx, listColumnsSQL, schema.ParseDataType, r.database)
}
