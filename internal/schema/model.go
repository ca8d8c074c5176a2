package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Column describes a single table column as discovered at startup.
type Column struct {
	Name string
	Type ColumnType
	// DataType is the database's own name for the column type.
	DataType string
	// Bits is the native width for Integer (16, 32, 64) and Float (32, 64)
	// columns. Zero means the widest width for the type.
	Bits       int
	Nullable   bool
	Default    *string
	PrimaryKey bool
	ForeignKey bool
	// Ordinal is the 1-based ordinal position of the column in its table.
	Ordinal int
}

// Table is a named, ordered set of columns. Column order is the ordinal
// order and is the order used for projections and positional row access.
type Table struct {
	Name    string
	Columns []Column
}

// ErrNoPrimaryKey is returned by PrimaryKeyColumn for tables without one.
var ErrNoPrimaryKey = errors.New("table has no primary key")

// HasPrimaryKey reports whether the table has a primary-key column.
func (t *Table) HasPrimaryKey() bool {
	_, err := t.PrimaryKeyColumn()
	return err == nil
}

// PrimaryKeyColumn returns the single primary-key column of the table.
func (t *Table) PrimaryKeyColumn() (Column, error) {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c, nil
		}
	}
	return Column{}, ErrNoPrimaryKey
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in ordinal order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the invariants the query builder relies on.
func (t *Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q: no columns", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	pks := 0
	prev := 0
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("table %q: column with empty name", t.Name)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("table %q: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
		if !c.Type.Valid() {
			return fmt.Errorf("table %q: column %q has undeclared type %s", t.Name, c.Name, c.Type)
		}
		if c.Ordinal <= prev {
			return fmt.Errorf("table %q: column %q ordinal %d is not increasing", t.Name, c.Name, c.Ordinal)
		}
		prev = c.Ordinal
		if c.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return fmt.Errorf("table %q: composite primary keys (%d columns) are not supported", t.Name, pks)
	}
	return nil
}

// Catalog maps table names to tables. It is built once by NewCatalog and is
// safe for concurrent use because nothing mutates it afterwards.
type Catalog struct {
	tables      map[string]*Table
	names       []string
	fingerprint uint64
}

// NewCatalog validates the given tables and builds a Catalog. Tables and
// their column slices are copied, so later changes by the caller are not
// observed.
func NewCatalog(tables []Table) (*Catalog, error) {
	c := &Catalog{tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.tables[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		cp := Table{Name: t.Name, Columns: append([]Column(nil), t.Columns...)}
		c.tables[t.Name] = &cp
		c.names = append(c.names, t.Name)
	}
	sort.Strings(c.names)
	c.fingerprint = xxh3.HashString(c.describe())
	return c, nil
}

// Lookup returns the table with the given name.
func (c *Catalog) Lookup(name string) (*Table, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Tables returns all tables sorted by name.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.tables[n])
	}
	return out
}

// Len returns the number of tables.
func (c *Catalog) Len() int { return len(c.names) }

// Fingerprint returns a stable hash of the catalog definition, rendered as
// 16 hex digits. Two catalogs with the same tables and columns share it.
func (c *Catalog) Fingerprint() string {
	return fmt.Sprintf("%016x", c.fingerprint)
}

// describe renders a canonical text form of the catalog for hashing.
func (c *Catalog) describe() string {
	var b strings.Builder
	for _, n := range c.names {
		t := c.tables[n]
		b.WriteString(t.Name)
		b.WriteByte('\n')
		for _, col := range t.Columns {
			b.WriteString("\t")
			b.WriteString(col.Name)
			b.WriteByte(' ')
			b.WriteString(col.Type.String())
			b.WriteString(strconv.Itoa(col.Bits))
			b.WriteByte(' ')
			b.WriteString(strconv.FormatBool(col.Nullable))
			b.WriteByte(' ')
			b.WriteString(strconv.FormatBool(col.PrimaryKey))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
