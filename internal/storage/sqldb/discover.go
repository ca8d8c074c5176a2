package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"natto/internal/schema"
	"natto/internal/storage"
)

// ColumnRow is one row of an information_schema column listing. Backends
// alias their catalog columns to these names.
type ColumnRow struct {
	Table      string         `db:"table_name"`
	Name       string         `db:"column_name"`
	DataType   string         `db:"data_type"`
	Nullable   int            `db:"nullable"`
	Default    sql.NullString `db:"column_default"`
	Ordinal    int            `db:"ordinal"`
	PrimaryKey int            `db:"is_pk"`
	ForeignKey int            `db:"is_fk"`
}

func (r ColumnRow) info() storage.ColumnInfo {
	c := storage.ColumnInfo{
		Name:       r.Name,
		DataType:   r.DataType,
		Nullable:   r.Nullable != 0,
		Ordinal:    r.Ordinal,
		PrimaryKey: r.PrimaryKey != 0,
		ForeignKey: r.ForeignKey != 0,
	}
	if r.Default.Valid {
		d := r.Default.String
		c.Default = &d
	}
	return c
}

// DiscoverColumns runs a single metadata query returning ColumnRow rows for
// every table, ordered by table, and builds the tables from it.
func (d *DB) DiscoverColumns(ctx context.Context, query string, mapType storage.TypeMapper, args ...any) ([]schema.Table, error) {
	var rows []ColumnRow
	if err := d.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: list columns: %w", d.name, err)
	}
	names, byTable := storage.GroupColumns(rows,
		func(r ColumnRow) string { return r.Table },
		ColumnRow.info,
	)
	out := make([]schema.Table, 0, len(names))
	for _, n := range names {
		if t, ok := storage.BuildTable(n, byTable[n], mapType); ok {
			out = append(out, t)
		}
	}
	return out, nil
}
