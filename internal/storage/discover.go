package storage

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"natto/internal/schema"
)

// ColumnInfo is a column as reported by a database's own metadata.
type ColumnInfo struct {
	Name       string
	DataType   string
	Nullable   bool
	Default    *string
	Ordinal    int
	PrimaryKey bool
	ForeignKey bool
}

// TypeMapper maps a database type name to a column type and native width.
// ok is false for types the service cannot convert.
type TypeMapper func(dataType string) (typ schema.ColumnType, bits int, ok bool)

// BuildTable converts metadata into a schema.Table. Tables the service
// cannot serve (unsupported column types, composite primary keys) are
// reported with ok=false and a logged reason.
func BuildTable(name string, cols []ColumnInfo, mapType TypeMapper) (schema.Table, bool) {
	if len(cols) == 0 {
		log.Printf("discovery: skipping table %q: no columns", name)
		return schema.Table{}, false
	}
	sorted := append([]ColumnInfo(nil), cols...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })

	t := schema.Table{Name: name, Columns: make([]schema.Column, 0, len(sorted))}
	var unsupported []string
	pks := 0
	for _, c := range sorted {
		typ, bits, ok := mapType(c.DataType)
		if !ok {
			unsupported = append(unsupported, fmt.Sprintf("%s (%s)", c.Name, c.DataType))
			continue
		}
		if c.PrimaryKey {
			pks++
		}
		t.Columns = append(t.Columns, schema.Column{
			Name:       c.Name,
			Type:       typ,
			DataType:   c.DataType,
			Bits:       bits,
			Nullable:   c.Nullable,
			Default:    c.Default,
			PrimaryKey: c.PrimaryKey,
			ForeignKey: c.ForeignKey,
			Ordinal:    c.Ordinal,
		})
	}
	if len(unsupported) > 0 {
		log.Printf("discovery: skipping table %q: unsupported column types: %s", name, strings.Join(unsupported, ", "))
		return schema.Table{}, false
	}
	if pks > 1 {
		log.Printf("discovery: skipping table %q: composite primary key over %d columns", name, pks)
		return schema.Table{}, false
	}
	return t, true
}

// TableLoader reads the metadata of one table. ok=false skips the table.
type TableLoader func(ctx context.Context, name string) (t schema.Table, ok bool, err error)

// DiscoverTables runs load for every name with at most workers in flight
// and returns the loaded tables in the order of names. The first error
// cancels the remaining loads.
func DiscoverTables(ctx context.Context, names []string, workers int, load TableLoader) ([]schema.Table, error) {
	if workers <= 0 {
		workers = 1
	}
	type slot struct {
		t  schema.Table
		ok bool
	}
	slots := make([]slot, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			t, ok, err := load(gctx, name)
			if err != nil {
				return fmt.Errorf("discover table %q: %w", name, err)
			}
			slots[i] = slot{t: t, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]schema.Table, 0, len(names))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.t)
		}
	}
	return out, nil
}

// GroupColumns splits a flat metadata listing into per-table column lists,
// returning the table names in first-seen order.
func GroupColumns[T any](rows []T, table func(T) string, info func(T) ColumnInfo) ([]string, map[string][]ColumnInfo) {
	var names []string
	byTable := map[string][]ColumnInfo{}
	for _, r := range rows {
		name := table(r)
		if _, seen := byTable[name]; !seen {
			names = append(names, name)
		}
		byTable[name] = append(byTable[name], info(r))
	}
	return names, byTable
}
