// Package sqlite implements a SQLite-backed storage.Backend using
// database/sql and the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQLite driver, registered as "sqlite".
	_ "modernc.org/sqlite"

	"natto/internal/query"
	"natto/internal/schema"
	"natto/internal/storage"
	"natto/internal/storage/sqldb"
)

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:natto.db?_pragma=foreign_keys(1)"
	//   "natto.db"
	DSN              string
	MaxConns         int
	StatementTimeout time.Duration
	DiscoveryWorkers int
}

// Repository is a SQLite-backed storage.Backend.
type Repository struct {
	*sqldb.DB
	workers int
}

// NewRepository opens a SQLite database and returns a Repository plus a
// Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := sqldb.Open(ctx, "sqlite", sqldb.Options{
		Kind:             "sqlite",
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	// Enable foreign keys; ignore the error if the build does not support it.
	_, _ = db.Exec(ctx, "PRAGMA foreign_keys = ON")

	closeFn := func() { db.Close() }
	return &Repository{DB: db, workers: cfg.DiscoveryWorkers}, closeFn, nil
}

// Dialect implements storage.Backend.
func (r *Repository) Dialect() query.Dialect { return query.SQLite }

type sqliteColumn struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

// Discover lists user tables from sqlite_master and reads each table's
// columns with pragma_table_info.
func (r *Repository) Discover(ctx context.Context) ([]schema.Table, error) {
	var names []string
	if err := r.X().SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`); err != nil {
		return nil, fmt.Errorf("sqlite: list tables: %w", err)
	}
	return storage.DiscoverTables(ctx, names, r.workers, r.loadTable)
}

func (r *Repository) loadTable(ctx context.Context, name string) (schema.Table, bool, error) {
	var cols []sqliteColumn
	if err := r.X().SelectContext(ctx, &cols,
		`SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, name); err != nil {
		return schema.Table{}, false, fmt.Errorf("sqlite: table info: %w", err)
	}
	var fks []string
	if err := r.X().SelectContext(ctx, &fks,
		`SELECT "from" FROM pragma_foreign_key_list(?)`, name); err != nil {
		return schema.Table{}, false, fmt.Errorf("sqlite: foreign keys: %w", err)
	}
	isFK := make(map[string]bool, len(fks))
	for _, f := range fks {
		isFK[f] = true
	}

	infos := make([]storage.ColumnInfo, len(cols))
	for i, c := range cols {
		info := storage.ColumnInfo{
			Name:       c.Name,
			DataType:   c.Type,
			Nullable:   c.NotNull == 0,
			Ordinal:    c.CID + 1,
			PrimaryKey: c.PK > 0,
			ForeignKey: isFK[c.Name],
		}
		if c.Default.Valid {
			d := c.Default.String
			info.Default = &d
		}
		infos[i] = info
	}
	t, ok := storage.BuildTable(name, infos, mapType)
	return t, ok, nil
}

// mapType applies SQLite's type affinity rules to a declared type.
func mapType(decl string) (schema.ColumnType, int, bool) {
	return schema.ParseSQLiteDeclType(decl)
}
