// Package query builds parameterized SQL for single-table insert, select and
// delete. Identifiers are taken only from the catalog and quoted by the
// dialect; every data value travels as a bound argument.
package query

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"natto/internal/schema"
)

// DefaultLimit is the page size used when a retrieve does not set one.
const DefaultLimit = 10

// Statement is SQL text plus its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// bind appends v to the arguments and returns its placeholder.
func (s *Statement) bind(d Dialect, v any) string {
	s.Args = append(s.Args, v)
	return d.Placeholder(len(s.Args))
}

// SortSpec orders results by one column.
type SortSpec struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// RetrieveParams are the optional parts of a select. Nil Limit and Offset
// mean DefaultLimit and 0.
type RetrieveParams struct {
	Filter string
	Limit  *int
	Offset *int
	Sort   []SortSpec
}

// Insert builds an INSERT for the payload keys that name columns of t, in
// catalog column order. Unknown keys are ignored.
func Insert(d Dialect, t *schema.Table, values map[string]any) (Statement, error) {
	var cols []schema.Column
	for _, c := range t.Columns {
		if _, ok := values[c.Name]; ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return Statement{}, ErrNoValidColumns
	}

	var st Statement
	names := make([]string, len(cols))
	phs := make([]string, len(cols))
	for i, c := range cols {
		v, err := schema.ToNative(c, values[c.Name])
		if err != nil {
			return Statement{}, err
		}
		names[i] = d.Ident(c.Name)
		phs[i] = st.bind(d, v)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Ident(t.Name))
	b.WriteString(" (")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(phs, ", "))
	b.WriteString(")")
	if d.Returning {
		b.WriteString(" RETURNING *")
	}
	st.SQL = b.String()
	return st, nil
}

// Select builds a SELECT projecting every column of t in catalog order,
// with the optional keyword filter, ordering and pagination of p.
func Select(d Dialect, t *schema.Table, p RetrieveParams) (Statement, error) {
	limit, offset := DefaultLimit, 0
	if p.Limit != nil {
		if *p.Limit < 0 {
			return Statement{}, &InvalidPaginationError{Field: "limit", Value: *p.Limit}
		}
		limit = *p.Limit
	}
	if p.Offset != nil {
		if *p.Offset < 0 {
			return Statement{}, &InvalidPaginationError{Field: "offset", Value: *p.Offset}
		}
		offset = *p.Offset
	}
	order := make([]string, 0, len(p.Sort))
	for _, s := range p.Sort {
		if _, ok := t.Column(s.Column); !ok {
			return Statement{}, &UnknownSortColumnError{Table: t.Name, Column: s.Column}
		}
		dir := " ASC"
		if s.Descending {
			dir = " DESC"
		}
		order = append(order, d.Ident(s.Column)+dir)
	}

	var st Statement
	var b strings.Builder
	b.WriteString("SELECT ")
	// SQL Server rejects FETCH NEXT 0 ROWS.
	emptyFetch := d.fetch && limit == 0
	if emptyFetch {
		b.WriteString("TOP (0) ")
	}
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Ident(c.Name))
	}
	b.WriteString(" FROM ")
	b.WriteString(d.Ident(t.Name))

	if conds := filterConditions(d, t, &st, p.Filter); len(conds) > 0 {
		b.WriteString(" WHERE (")
		b.WriteString(strings.Join(conds, " OR "))
		b.WriteString(")")
	}

	switch {
	case len(order) > 0:
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	case d.fetch && !emptyFetch:
		b.WriteString(" ORDER BY (SELECT NULL)")
	}

	switch {
	case emptyFetch:
	case d.fetch:
		b.WriteString(" OFFSET ")
		b.WriteString(st.bind(d, int64(offset)))
		b.WriteString(" ROWS FETCH NEXT ")
		b.WriteString(st.bind(d, int64(limit)))
		b.WriteString(" ROWS ONLY")
	default:
		b.WriteString(" LIMIT ")
		b.WriteString(st.bind(d, int64(limit)))
		b.WriteString(" OFFSET ")
		b.WriteString(st.bind(d, int64(offset)))
	}
	st.SQL = b.String()
	return st, nil
}

// filterConditions returns one condition per column the keyword can match,
// binding its argument into st.
func filterConditions(d Dialect, t *schema.Table, st *Statement, filter string) []string {
	kw := norm.NFC.String(strings.TrimSpace(filter))
	if kw == "" {
		return nil
	}
	var conds []string
	for _, c := range t.Columns {
		v, ok := schema.ParseKeyword(c, kw)
		if !ok {
			continue
		}
		lhs := d.Ident(c.Name)
		if c.Type == schema.String {
			if d.textCast(c) {
				lhs += "::text"
			}
			conds = append(conds, d.likeExpr(lhs, st.bind(d, "%"+d.escapeLike(kw)+"%")))
			continue
		}
		conds = append(conds, lhs+" = "+st.bind(d, v))
	}
	return conds
}

// Delete builds a DELETE of the row whose primary key equals pk.
func Delete(d Dialect, t *schema.Table, pk any) (Statement, error) {
	col, err := t.PrimaryKeyColumn()
	if err != nil {
		return Statement{}, &NoPrimaryKeyError{Table: t.Name}
	}
	v, err := schema.ToNative(col, pk)
	if err != nil {
		return Statement{}, err
	}
	var st Statement
	ph := st.bind(d, v)
	st.SQL = "DELETE FROM " + d.Ident(t.Name) + " WHERE " + d.Ident(col.Name) + " = " + ph
	if d.Returning {
		st.SQL += " RETURNING *"
	}
	return st, nil
}
