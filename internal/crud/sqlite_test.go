package crud

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"natto/internal/schema"
	"natto/internal/storage"
	_ "natto/internal/storage/sqlite"
)

// newSQLiteService discovers a fresh SQLite database and returns a Service
// over it.
func newSQLiteService(t *testing.T, ddl ...string) *Service {
	t.Helper()
	ctx := context.Background()
	b, err := storage.New(ctx, storage.Config{
		Kind: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "crud.db"),
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(b.Close)
	for _, stmt := range ddl {
		if _, err := b.Exec(ctx, stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	tables, err := b.Discover(ctx)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	cat, err := schema.NewCatalog(tables)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return NewService(b, b.Dialect(), cat)
}

func TestSQLite_CreateRetrieveDelete(t *testing.T) {
	t.Parallel()

	s := newSQLiteService(t,
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, score REAL, active BOOLEAN NOT NULL DEFAULT 1)`,
	)
	ctx := context.Background()

	for _, name := range []string{"Ada", "Grace", "Adele"} {
		_, err := s.Create(ctx, CreateRequest{Table: "users", Values: map[string]any{
			"name":   name,
			"score":  json.Number("1.5"),
			"active": true,
		}})
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	recs, err := s.Retrieve(ctx, RetrieveRequest{Table: "users", Filter: "AD"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	b, _ := json.Marshal(recs)
	want := `[{"id":1,"name":"Ada","score":1.5,"active":true},{"id":3,"name":"Adele","score":1.5,"active":true}]`
	if string(b) != want {
		t.Fatalf("filtered = %s\nwant       %s", b, want)
	}

	one, two := 1, 1
	recs, err = s.Retrieve(ctx, RetrieveRequest{Table: "users", Limit: &one, Offset: &two})
	if err != nil || len(recs) != 1 {
		t.Fatalf("paged = %v, %v", recs, err)
	}
	if v, _ := recs[0].Get("name"); v != "Grace" {
		t.Fatalf("second row name = %v", v)
	}

	ok, err := s.Delete(ctx, DeleteRequest{Table: "users", PrimaryKeyValue: json.Number("2")})
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	ok, err = s.Delete(ctx, DeleteRequest{Table: "users", PrimaryKeyValue: json.Number("2")})
	if err != nil || ok {
		t.Fatalf("second Delete = %v, %v", ok, err)
	}

	recs, err = s.Retrieve(ctx, RetrieveRequest{Table: "users"})
	if err != nil || len(recs) != 2 {
		t.Fatalf("after delete = %v, %v", recs, err)
	}
}

func TestSQLite_HostileFilterIsData(t *testing.T) {
	t.Parallel()

	s := newSQLiteService(t, `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`)
	ctx := context.Background()

	hostile := "x'; DROP TABLE notes; --"
	if _, err := s.Create(ctx, CreateRequest{Table: "notes", Values: map[string]any{"body": hostile}}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	recs, err := s.Retrieve(ctx, RetrieveRequest{Table: "notes", Filter: hostile})
	if err != nil || len(recs) != 1 {
		t.Fatalf("Retrieve = %v, %v", recs, err)
	}
	if v, _ := recs[0].Get("body"); v != hostile {
		t.Fatalf("body = %v", v)
	}

	recs, err = s.Retrieve(ctx, RetrieveRequest{Table: "notes", Filter: "100%"})
	if err != nil || len(recs) != 0 {
		t.Fatalf("escaped wildcard matched: %v, %v", recs, err)
	}
}

// TestSQLite_DateTableNotExposed checks that a table with a column the
// service cannot convert is left out of the catalog instead of failing on
// every read.
func TestSQLite_DateTableNotExposed(t *testing.T) {
	t.Parallel()

	s := newSQLiteService(t,
		`CREATE TABLE events (id INTEGER PRIMARY KEY, title TEXT NOT NULL, at DATE)`,
		`INSERT INTO events (title, at) VALUES ('launch', '2024-05-01')`,
		`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`,
	)
	ctx := context.Background()

	if _, ok := s.ListTables()["events"]; ok {
		t.Fatalf("events should not be listed: %+v", s.ListTables())
	}
	_, err := s.Retrieve(ctx, RetrieveRequest{Table: "events"})
	var nf *TableNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Retrieve events error = %v, want TableNotFoundError", err)
	}
	if _, err := s.Retrieve(ctx, RetrieveRequest{Table: "notes"}); err != nil {
		t.Fatalf("Retrieve notes: %v", err)
	}
}
