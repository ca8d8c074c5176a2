package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"natto/internal/crud"
	"natto/internal/jsonutil"
	"natto/internal/query"
	"natto/internal/schema"
)

// fakeService returns canned results and records the last request.
type fakeService struct {
	tables  map[string]crud.TableInfo
	records []jsonutil.Record
	deleted bool
	err     error
	pingErr error

	gotCreate   crud.CreateRequest
	gotRetrieve crud.RetrieveRequest
	gotDelete   crud.DeleteRequest
}

func (f *fakeService) ListTables() map[string]crud.TableInfo { return f.tables }
func (f *fakeService) Fingerprint() string                   { return "00000000deadbeef" }
func (f *fakeService) Ping(context.Context) error            { return f.pingErr }

func (f *fakeService) Create(_ context.Context, req crud.CreateRequest) (crud.CreateResult, error) {
	f.gotCreate = req
	if f.err != nil {
		return crud.CreateResult{}, f.err
	}
	return crud.CreateResult{OK: true}, nil
}

func (f *fakeService) Retrieve(_ context.Context, req crud.RetrieveRequest) ([]jsonutil.Record, error) {
	f.gotRetrieve = req
	return f.records, f.err
}

func (f *fakeService) Delete(_ context.Context, req crud.DeleteRequest) (bool, error) {
	f.gotDelete = req
	return f.deleted, f.err
}

func newTestServer(svc Service, cfg Config) (http.Handler, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg.Logger = log.New(&buf, "", 0)
	return NewServer(svc, cfg).Handler(), &buf
}

func do(h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTables_ETag(t *testing.T) {
	t.Parallel()

	svc := &fakeService{tables: map[string]crud.TableInfo{
		"users": {Name: "users", HasPrimaryKey: true, Columns: []crud.ColumnInfo{
			{Name: "id", Type: schema.Integer, PrimaryKey: true},
		}},
	}}
	h, _ := newTestServer(svc, Config{})

	rec := do(h, http.MethodGet, "/tables", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := `{"data":{"users":{"name":"users","has_primary_key":true,"columns":[{"name":"id","type":"integer","primary_key":true,"nullable":false}]}}}`
	if got := strings.TrimSpace(rec.Body.String()); got != want {
		t.Fatalf("body = %s\nwant   %s", got, want)
	}
	etag := rec.Header().Get("ETag")
	if etag != `"00000000deadbeef"` {
		t.Fatalf("ETag = %q", etag)
	}

	rec = do(h, http.MethodGet, "/tables", "", "If-None-Match", etag)
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Fatalf("conditional GET = %d %q", rec.Code, rec.Body.String())
	}
}

func TestCreate_DecodesNumbers(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	h, _ := newTestServer(svc, Config{})

	rec := do(h, http.MethodPost, "/create", `{"table":"users","values":{"id":9007199254740993,"name":"Ada"}}`)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	if got := svc.gotCreate.Values["id"]; got != json.Number("9007199254740993") {
		t.Fatalf("id = %#v, want json.Number", got)
	}
}

func TestRetrieve(t *testing.T) {
	t.Parallel()

	rec1, err := jsonutil.NewRecordEncoder([]string{"name", "id"}).Record([]any{"Ada", int64(1)})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	svc := &fakeService{records: []jsonutil.Record{rec1}}
	h, _ := newTestServer(svc, Config{})

	rec := do(h, http.MethodPost, "/retrieve",
		`{"table":"users","filter":"ad","limit":5,"offset":10,"sort":[{"column":"name","descending":true}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"data":[{"name":"Ada","id":1}]}` {
		t.Fatalf("body = %s", got)
	}
	req := svc.gotRetrieve
	if req.Filter != "ad" || *req.Limit != 5 || *req.Offset != 10 || !req.Sort[0].Descending {
		t.Fatalf("request = %+v", req)
	}

	svc.records = nil
	rec = do(h, http.MethodPost, "/retrieve", `{"table":"users"}`)
	if got := strings.TrimSpace(rec.Body.String()); got != `{"data":[]}` {
		t.Fatalf("empty body = %s", got)
	}
	if svc.gotRetrieve.Limit != nil {
		t.Fatalf("absent limit should stay nil")
	}
}

func TestDelete_PKAlias(t *testing.T) {
	t.Parallel()

	cases := []struct {
		body string
		want any
	}{
		{`{"table":"users","primary_key_value":7}`, json.Number("7")},
		{`{"table":"users","pk":"abc"}`, "abc"},
		{`{"table":"users","primary_key_value":null}`, nil},
	}
	for _, tc := range cases {
		svc := &fakeService{deleted: true}
		h, _ := newTestServer(svc, Config{})
		rec := do(h, http.MethodPost, "/delete", tc.body)
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"deleted":true}` {
			t.Fatalf("%s: %d %s", tc.body, rec.Code, rec.Body.String())
		}
		if svc.gotDelete.PrimaryKeyValue != tc.want || svc.gotDelete.Table != "users" {
			t.Fatalf("%s: request = %#v", tc.body, svc.gotDelete)
		}
	}

	h, _ := newTestServer(&fakeService{}, Config{})
	if rec := do(h, http.MethodPost, "/delete", `{"table":"users"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing pk status = %d", rec.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"table not found", &crud.TableNotFoundError{Table: "x"}, http.StatusNotFound},
		{"no primary key", &query.NoPrimaryKeyError{Table: "x"}, http.StatusBadRequest},
		{"no valid columns", query.ErrNoValidColumns, http.StatusBadRequest},
		{"unknown sort", &query.UnknownSortColumnError{Table: "x", Column: "y"}, http.StatusBadRequest},
		{"bad page", &query.InvalidPaginationError{Field: "limit", Value: -1}, http.StatusBadRequest},
		{"conversion", &schema.ConversionError{Column: "id", Type: schema.Integer, Reason: "bad"}, http.StatusBadRequest},
		{"execution", &crud.ExecutionError{Op: "create", Err: errors.New("duplicate key")}, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h, logs := newTestServer(&fakeService{err: tc.err}, Config{})
			rec := do(h, http.MethodPost, "/create", `{"table":"x","values":{}}`)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d", rec.Code, tc.code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != tc.err.Error() {
				t.Fatalf("body = %s (%v)", rec.Body.String(), err)
			}
			level := "warn:"
			if tc.code >= 500 {
				level = "error:"
			}
			if !strings.Contains(logs.String(), level) {
				t.Fatalf("log %q missing %q", logs.String(), level)
			}
		})
	}
}

func TestMalformedBodies(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(&fakeService{}, Config{MaxBodyBytes: 64})
	cases := []struct {
		body string
		code int
	}{
		{``, http.StatusBadRequest},
		{`{"table":`, http.StatusBadRequest},
		{`{"table":"x","limit":1.5}`, http.StatusBadRequest},
		{`{"table":"x"} {"table":"y"}`, http.StatusBadRequest},
		{`{"table":"` + strings.Repeat("a", 100) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		rec := do(h, http.MethodPost, "/retrieve", tc.body)
		if rec.Code != tc.code {
			t.Fatalf("%q: status = %d, want %d", tc.body, rec.Code, tc.code)
		}
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(&fakeService{}, Config{})
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy status = %d", rec.Code)
	}
	h, _ = newTestServer(&fakeService{pingErr: errors.New("down")}, Config{})
	if rec := do(h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	h, _ := newTestServer(&fakeService{}, Config{})
	if rec := do(h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("metrics without handler = %d", rec.Code)
	}
	m := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "natto_up 1\n") })
	h, _ = newTestServer(&fakeService{}, Config{Metrics: m})
	if rec := do(h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK || rec.Body.String() != "natto_up 1\n" {
		t.Fatalf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	t.Parallel()

	h, logs := newTestServer(&fakeService{}, Config{})

	rec := do(h, http.MethodGet, "/healthz", "", RequestIDHeader, "req-123", "Origin", "http://example.com")
	if rec.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("request id = %q", rec.Header().Get(RequestIDHeader))
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header missing: %v", rec.Header())
	}
	if !strings.Contains(logs.String(), "req-123 GET /healthz 200") {
		t.Fatalf("access log = %q", logs.String())
	}

	rec = do(h, http.MethodGet, "/healthz", "")
	if len(rec.Header().Get(RequestIDHeader)) != 36 {
		t.Fatalf("generated request id = %q", rec.Header().Get(RequestIDHeader))
	}

	rec = do(h, http.MethodGet, "/create", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /create = %d", rec.Code)
	}
}

func TestEtagMatches(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		`"abc"`:      true,
		`W/"abc"`:    true,
		`"x", "abc"`: true,
		`*`:          true,
		`"abd"`:      false,
		``:           false,
	}
	for hdr, want := range cases {
		if got := etagMatches(hdr, `"abc"`); got != want {
			t.Fatalf("etagMatches(%q) = %v, want %v", hdr, got, want)
		}
	}
}
