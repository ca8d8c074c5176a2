// Package mssql implements a Microsoft SQL Server storage.Backend using
// go-mssqldb through database/sql.
package mssql

import (
	"context"
	"fmt"
	"strings"
	"time"

	// SQL Server driver, registered as "sqlserver".
	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"natto/internal/query"
	"natto/internal/schema"
	"natto/internal/storage/sqldb"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
	// Schema is the schema to discover; default "dbo". Statements use
	// unqualified names, resolved through the login's default schema.
	Schema           string
	MaxConns         int
	StatementTimeout time.Duration
}

// Repository is an MSSQL-backed implementation of storage.Backend.
type Repository struct {
	*sqldb.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	if cfg.Schema == "" {
		cfg.Schema = "dbo"
	}
	db, err := sqldb.Open(ctx, "sqlserver", sqldb.Options{
		Kind:             "mssql",
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	close := func() { db.Close() }
	return &Repository{DB: db, cfg: cfg}, close, nil
}

// Dialect implements storage.Backend.
func (r *Repository) Dialect() query.Dialect { return query.MSSQL }

const listColumnsSQL = `
SELECT
    c.TABLE_NAME AS table_name,
    c.COLUMN_NAME AS column_name,
    c.DATA_TYPE AS data_type,
    CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS nullable,
    c.COLUMN_DEFAULT AS column_default,
    c.ORDINAL_POSITION AS ordinal,
    CASE WHEN EXISTS (
        SELECT 1
        FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
        JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
          ON k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
         AND k.TABLE_SCHEMA = tc.TABLE_SCHEMA
         AND k.TABLE_NAME = tc.TABLE_NAME
        WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
          AND k.TABLE_SCHEMA = c.TABLE_SCHEMA
          AND k.TABLE_NAME = c.TABLE_NAME
          AND k.COLUMN_NAME = c.COLUMN_NAME
    ) THEN 1 ELSE 0 END AS is_pk,
    CASE WHEN EXISTS (
        SELECT 1
        FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
        JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE k
          ON k.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
         AND k.TABLE_SCHEMA = tc.TABLE_SCHEMA
         AND k.TABLE_NAME = tc.TABLE_NAME
        WHERE tc.CONSTRAINT_TYPE = 'FOREIGN KEY'
          AND k.TABLE_SCHEMA = c.TABLE_SCHEMA
          AND k.TABLE_NAME = c.TABLE_NAME
          AND k.COLUMN_NAME = c.COLUMN_NAME
    ) THEN 1 ELSE 0 END AS is_fk
FROM INFORMATION_SCHEMA.COLUMNS c
JOIN INFORMATION_SCHEMA.TABLES t
  ON t.TABLE_SCHEMA = c.TABLE_SCHEMA AND t.TABLE_NAME = c.TABLE_NAME
WHERE c.TABLE_SCHEMA = @p1 AND t.TABLE_TYPE = 'BASE TABLE'
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

// Discover reads every base table of the configured schema in one query.
func (r *Repository) Discover(ctx context.Context) ([]schema.Table, error) {
	return r.DiscoverColumns(ctx, listColumnsSQL, mapType, r.cfg.Schema)
}

// mapType rejects uniqueidentifier: the driver returns its raw mixed-endian
// bytes, which have no faithful string form without a cast.
func mapType(dataType string) (schema.ColumnType, int, bool) {
	if strings.EqualFold(dataType, "uniqueidentifier") {
		return 0, 0, false
	}
	return schema.ParseDataType(dataType)
}
