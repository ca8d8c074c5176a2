// Package httpapi exposes the table operations over HTTP with JSON bodies.
//
// Routes:
//
//	GET  /tables   → catalog description, ETag = catalog fingerprint
//	POST /create   → insert one row
//	POST /retrieve → filtered, sorted, paged select
//	POST /delete   → delete by primary key
//	GET  /healthz  → database ping
//	GET  /metrics  → metrics exposition, when a handler is configured
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"natto/internal/crud"
	"natto/internal/jsonutil"
	"natto/internal/query"
	"natto/internal/schema"
)

// DefaultMaxBodyBytes bounds request bodies when Config leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// Service is the set of operations the server exposes. *crud.Service
// implements it.
type Service interface {
	ListTables() map[string]crud.TableInfo
	Fingerprint() string
	Ping(ctx context.Context) error
	Create(ctx context.Context, req crud.CreateRequest) (crud.CreateResult, error)
	Retrieve(ctx context.Context, req crud.RetrieveRequest) ([]jsonutil.Record, error)
	Delete(ctx context.Context, req crud.DeleteRequest) (bool, error)
}

var _ Service = (*crud.Service)(nil)

// Config controls the handler.
type Config struct {
	MaxBodyBytes int64
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	// Logger receives access and error logs; nil means log.Default().
	Logger *log.Logger
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	cfg    Config
	logger *log.Logger
	mux    *http.ServeMux
}

// NewServer constructs a Server with its routes registered.
func NewServer(svc Service, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{svc: svc, cfg: cfg, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /tables", s.handleTables)
	s.mux.HandleFunc("POST /create", s.handleCreate)
	s.mux.HandleFunc("POST /retrieve", s.handleRetrieve)
	s.mux.HandleFunc("POST /delete", s.handleDelete)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		s.mux.Handle("GET /metrics", s.cfg.Metrics)
	}
}

// Handler returns the routes wrapped in CORS, request-id, access-log and
// metrics middleware.
func (s *Server) Handler() http.Handler {
	return s.withRequestLog(withCORS(s.mux))
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	etag := `"` + s.svc.Fingerprint() + `"`
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": s.svc.ListTables()})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req crud.CreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req crud.RetrieveRequest
	if !s.decode(w, r, &req) {
		return
	}
	recs, err := s.svc.Retrieve(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []jsonutil.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": recs})
}

// deleteBody accepts the primary key under "primary_key_value" or "pk".
type deleteBody struct {
	Table           string          `json:"table"`
	PrimaryKeyValue json.RawMessage `json:"primary_key_value"`
	PK              json.RawMessage `json:"pk"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var body deleteBody
	if !s.decode(w, r, &body) {
		return
	}
	raw := body.PrimaryKeyValue
	if len(raw) == 0 {
		raw = body.PK
	}
	if len(raw) == 0 {
		s.writeError(w, r, &requestError{msg: "missing primary_key_value"})
		return
	}
	pk, err := decodeValue(raw)
	if err != nil {
		s.writeError(w, r, &requestError{msg: "invalid primary_key_value: " + err.Error()})
		return
	}
	deleted, err := s.svc.Delete(r.Context(), crud.DeleteRequest{Table: body.Table, PrimaryKeyValue: pk})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		s.logger.Printf("error: health check: %v", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requestError is a malformed request body.
type requestError struct {
	msg    string
	status int
}

func (e *requestError) Error() string { return e.msg }

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	var (
		reqErr   *requestError
		notFound *crud.TableNotFoundError
		noPK     *query.NoPrimaryKeyError
		badSort  *query.UnknownSortColumnError
		badPage  *query.InvalidPaginationError
		conv     *schema.ConversionError
	)
	switch {
	case errors.As(err, &reqErr):
		if reqErr.status != 0 {
			return reqErr.status
		}
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, query.ErrNoValidColumns),
		errors.As(err, &noPK),
		errors.As(err, &badSort),
		errors.As(err, &badPage),
		errors.As(err, &conv):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	level := "warn"
	if code >= 500 {
		level = "error"
	}
	s.logger.Printf("%s: %s %s [%s]: %v", level, r.Method, r.URL.Path, requestID(r.Context()), err)
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

// writeJSON marshals v before writing so that an encoding failure can
// still produce an error response.
func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("error: encode response: %v", err)
		code = http.StatusInternalServerError
		b, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(append(b, '\n'))
}
