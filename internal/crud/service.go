// Package crud implements the table operations (list, create, retrieve,
// delete) on top of the catalog, the query builders and a storage executor.
//
// Each operation runs the same sequence: look the table up in the catalog,
// build the statement, execute it, and map the result. Every step returns a
// typed error; translating errors into transport responses is left to the
// caller.
package crud

import (
	"context"
	"time"

	"natto/internal/jsonutil"
	"natto/internal/metrics"
	"natto/internal/query"
	"natto/internal/schema"
	"natto/internal/storage"
)

// Service runs table operations against one database. It holds no mutable
// state and is safe for concurrent use.
type Service struct {
	exec     storage.Executor
	dialect  query.Dialect
	catalog  *schema.Catalog
	encoders map[string]*jsonutil.RecordEncoder
}

// NewService returns a Service over the given executor, dialect and catalog.
func NewService(exec storage.Executor, d query.Dialect, cat *schema.Catalog) *Service {
	enc := make(map[string]*jsonutil.RecordEncoder, cat.Len())
	for _, t := range cat.Tables() {
		enc[t.Name] = jsonutil.NewRecordEncoder(t.ColumnNames())
	}
	return &Service{exec: exec, dialect: d, catalog: cat, encoders: enc}
}

// ColumnInfo describes a column to API clients.
type ColumnInfo struct {
	Name       string            `json:"name"`
	Type       schema.ColumnType `json:"type"`
	PrimaryKey bool              `json:"primary_key"`
	Nullable   bool              `json:"nullable"`
}

// TableInfo describes a table to API clients.
type TableInfo struct {
	Name          string       `json:"name"`
	HasPrimaryKey bool         `json:"has_primary_key"`
	Columns       []ColumnInfo `json:"columns"`
}

// ListTables describes every table in the catalog, keyed by name.
func (s *Service) ListTables() map[string]TableInfo {
	out := make(map[string]TableInfo, s.catalog.Len())
	for _, t := range s.catalog.Tables() {
		cols := make([]ColumnInfo, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = ColumnInfo{Name: c.Name, Type: c.Type, PrimaryKey: c.PrimaryKey, Nullable: c.Nullable}
		}
		out[t.Name] = TableInfo{Name: t.Name, HasPrimaryKey: t.HasPrimaryKey(), Columns: cols}
	}
	return out
}

// Fingerprint identifies the catalog the service was built with.
func (s *Service) Fingerprint() string { return s.catalog.Fingerprint() }

// Ping checks the database behind the service.
func (s *Service) Ping(ctx context.Context) error { return s.exec.Ping(ctx) }

// CreateRequest inserts one row. Values are JSON-decoded, numbers as
// json.Number.
type CreateRequest struct {
	Table  string         `json:"table"`
	Values map[string]any `json:"values"`
}

// CreateResult reports a successful insert.
type CreateResult struct {
	OK bool `json:"ok"`
}

// Create inserts one row built from the request values.
func (s *Service) Create(ctx context.Context, req CreateRequest) (res CreateResult, err error) {
	defer observe("create", time.Now(), &err)

	t, err := s.lookup(req.Table)
	if err != nil {
		return CreateResult{}, err
	}
	st, err := query.Insert(s.dialect, t, req.Values)
	if err != nil {
		return CreateResult{}, err
	}
	n, err := s.run(ctx, "create", st)
	if err != nil {
		return CreateResult{}, err
	}
	metrics.RecordRows("create", n)
	return CreateResult{OK: true}, nil
}

// RetrieveRequest selects a page of rows. Nil Limit and Offset mean the
// defaults (10 and 0).
type RetrieveRequest struct {
	Table  string           `json:"table"`
	Filter string           `json:"filter,omitempty"`
	Limit  *int             `json:"limit,omitempty"`
	Offset *int             `json:"offset,omitempty"`
	Sort   []query.SortSpec `json:"sort,omitempty"`
}

// Retrieve returns the matching rows as ordered records.
func (s *Service) Retrieve(ctx context.Context, req RetrieveRequest) (recs []jsonutil.Record, err error) {
	defer observe("retrieve", time.Now(), &err)

	t, err := s.lookup(req.Table)
	if err != nil {
		return nil, err
	}
	st, err := query.Select(s.dialect, t, query.RetrieveParams{
		Filter: req.Filter,
		Limit:  req.Limit,
		Offset: req.Offset,
		Sort:   req.Sort,
	})
	if err != nil {
		return nil, err
	}
	rows, err := s.exec.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, &ExecutionError{Op: "retrieve", Err: err}
	}
	recs, err = MapRows(t, s.encoders[t.Name], rows)
	if err != nil {
		return nil, err
	}
	metrics.RecordRows("retrieve", len(recs))
	return recs, nil
}

// DeleteRequest deletes the row with the given primary-key value.
type DeleteRequest struct {
	Table           string `json:"table"`
	PrimaryKeyValue any    `json:"primary_key_value"`
}

// Delete removes the row whose primary key equals the request value. It
// reports whether a row was removed; a missing row is not an error.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (deleted bool, err error) {
	defer observe("delete", time.Now(), &err)

	t, err := s.lookup(req.Table)
	if err != nil {
		return false, err
	}
	st, err := query.Delete(s.dialect, t, req.PrimaryKeyValue)
	if err != nil {
		return false, err
	}
	n, err := s.run(ctx, "delete", st)
	if err != nil {
		return false, err
	}
	metrics.RecordRows("delete", n)
	return n > 0, nil
}

func (s *Service) lookup(name string) (*schema.Table, error) {
	t, ok := s.catalog.Lookup(name)
	if !ok {
		return nil, &TableNotFoundError{Table: name}
	}
	return t, nil
}

// run executes a write statement and returns the affected row count,
// counting RETURNING rows where the dialect has them.
func (s *Service) run(ctx context.Context, op string, st query.Statement) (int, error) {
	if s.dialect.Returning {
		rows, err := s.exec.Query(ctx, st.SQL, st.Args...)
		if err != nil {
			return 0, &ExecutionError{Op: op, Err: err}
		}
		return len(rows), nil
	}
	n, err := s.exec.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return 0, &ExecutionError{Op: op, Err: err}
	}
	return int(n), nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordOperation(op, *err, time.Since(start))
}
