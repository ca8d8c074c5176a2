package sqlite

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"natto/internal/query"
	"natto/internal/schema"
	"natto/internal/storage"
)

func newTestRepo(tb testing.TB) *Repository {
	tb.Helper()
	r, closeFn, err := NewRepository(context.Background(), Config{
		DSN:              filepath.Join(tb.TempDir(), "test.db"),
		DiscoveryWorkers: 2,
	})
	if err != nil {
		tb.Fatalf("NewRepository: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func mustExec(tb testing.TB, r *Repository, sqlStmt string, args ...any) {
	tb.Helper()
	if _, err := r.Exec(context.Background(), sqlStmt, args...); err != nil {
		tb.Fatalf("exec %q: %v", sqlStmt, err)
	}
}

// TestAdapterRegistrationAndClose checks that init() registered the backend
// and that the wrapped Close calls the cleanup from newRepository.
func TestAdapterRegistrationAndClose(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotCfg Config
	var closed int32
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return &Repository{}, func() { atomic.AddInt32(&closed, 1) }, nil
	}

	b, err := storage.New(context.Background(), storage.Config{
		Kind:             "sqlite",
		DSN:              "file:x.db",
		MaxConns:         3,
		DiscoveryWorkers: 4,
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if gotCfg.DSN != "file:x.db" || gotCfg.MaxConns != 3 || gotCfg.DiscoveryWorkers != 4 {
		t.Fatalf("config not mapped: %+v", gotCfg)
	}
	if b.Dialect().Name != query.SQLite.Name {
		t.Fatalf("dialect = %q", b.Dialect().Name)
	}
	b.Close()
	if atomic.LoadInt32(&closed) != 1 {
		t.Fatalf("Close() did not invoke closeFn")
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	mustExec(t, r, `CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		score REAL,
		amount DECIMAL(10,2) DEFAULT 0,
		active BOOLEAN
	)`)
	mustExec(t, r, `CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id))`)
	mustExec(t, r, `CREATE TABLE pairs (a INTEGER, b INTEGER, PRIMARY KEY (a, b))`)
	mustExec(t, r, `CREATE TABLE events (id INTEGER PRIMARY KEY, title TEXT NOT NULL, at DATE)`)

	tables, err := r.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(tables) != 2 || tables[0].Name != "orders" || tables[1].Name != "users" {
		t.Fatalf("tables = %+v, want orders and users (pairs and events skipped)", tables)
	}

	users := tables[1]
	want := []struct {
		name     string
		typ      schema.ColumnType
		nullable bool
	}{
		{"id", schema.Integer, true},
		{"name", schema.String, false},
		{"score", schema.Float, true},
		{"amount", schema.Numeric, true},
		{"active", schema.Boolean, true},
	}
	if len(users.Columns) != len(want) {
		t.Fatalf("users columns = %+v", users.Columns)
	}
	for i, w := range want {
		c := users.Columns[i]
		if c.Name != w.name || c.Type != w.typ || c.Nullable != w.nullable || c.Ordinal != i+1 {
			t.Fatalf("column %d = %+v, want %+v", i, c, w)
		}
	}
	if !users.Columns[0].PrimaryKey {
		t.Fatalf("id should be the primary key")
	}
	if d := users.Columns[3].Default; d == nil || *d != "0" {
		t.Fatalf("amount default = %v", d)
	}
	if fk := tables[0].Columns[1]; fk.Name != "user_id" || !fk.ForeignKey {
		t.Fatalf("orders.user_id should be a foreign key: %+v", fk)
	}

	if _, err := schema.NewCatalog(tables); err != nil {
		t.Fatalf("discovered tables do not form a catalog: %v", err)
	}
}

// TestQueryExec runs statements in the shape the query builders emit.
func TestQueryExec(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	mustExec(t, r, `CREATE TABLE "items" ("id" INTEGER PRIMARY KEY, "label" TEXT)`)

	rows, err := r.Query(ctx, `INSERT INTO "items" ("label") VALUES (?1) RETURNING *`, "a")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != int64(1) || rows[0][1] != "a" {
		t.Fatalf("returned rows = %#v", rows)
	}
	mustExec(t, r, `INSERT INTO "items" ("label") VALUES (?1)`, "b")

	rows, err = r.Query(ctx, `SELECT "id", "label" FROM "items" ORDER BY "id" ASC LIMIT ?1 OFFSET ?2`, int64(10), int64(1))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(rows) != 1 || rows[0][1] != "b" {
		t.Fatalf("page = %#v", rows)
	}

	n, err := r.Exec(ctx, `DELETE FROM "items" WHERE "id" = ?1`, int64(42))
	if err != nil || n != 0 {
		t.Fatalf("delete missing row = %d, %v", n, err)
	}
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
