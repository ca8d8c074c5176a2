// Package config centralizes process configuration. Every tunable is a
// command-line flag whose default is seeded from an environment variable,
// so `-help` lists all knobs and containers can configure through env.
//
// Typical usage:
//
//	cfg, err := config.Load() // reads os.Args and os.Environ
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-db_kind=sqlite"})
package config

import (
	"flag"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all process configuration derived from flags and
// environment variables. It is a plain value and safe to share after
// construction.
type Config struct {
	// DB describes the database. A full DSN is required for every kind
	// except postgres, where it can be built from discrete parts.
	DBKind     string // "postgres", "sqlite", "mssql" or "mysql".
	DSN        string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	// Schema is the schema to discover; empty means the backend default.
	Schema string

	MaxConns         int
	StatementTimeout time.Duration
	DiscoveryWorkers int

	// HTTP
	Addr            string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration

	// Metrics
	MetricsBackend string // "prometheus", "datadog" or "none".
	MetricsRuntime bool   // Prometheus only: export Go and process collectors.
	DatadogAddr    string
}

// LoadFromArgs builds a Config by defining flags on fs, seeding each flag's
// default from getenv, and then parsing args.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit CLI flags (in args) override the seeded defaults.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}
	env := envReader(getenv)

	// DB connectivity
	fs.StringVar(&cfg.DBKind, "db_kind", env.str("DB_KIND", "postgres"), "Database kind: postgres, sqlite, mssql or mysql.")
	fs.StringVar(&cfg.DSN, "dsn", env.str("DB_DSN", ""), "Full DSN (required except for postgres).")
	fs.StringVar(&cfg.DBUser, "db_user", env.str("DB_USER", "user"), "DB user (postgres DSN builder).")
	fs.StringVar(&cfg.DBPassword, "db_password", env.str("DB_PASSWORD", "password"), "DB password (postgres DSN builder).")
	fs.StringVar(&cfg.DBHost, "db_host", env.str("DB_HOST", "localhost"), "DB host (postgres DSN builder).")
	fs.StringVar(&cfg.DBPort, "db_port", env.str("DB_PORT", "5432"), "DB port (postgres DSN builder).")
	fs.StringVar(&cfg.DBName, "db_name", env.str("DB_NAME", "testdb"), "DB name (postgres DSN builder).")
	fs.StringVar(&cfg.Schema, "db_schema", env.str("DB_SCHEMA", ""), "Schema to expose (default: public for postgres, dbo for mssql).")

	// Pool & discovery
	fs.IntVar(&cfg.MaxConns, "db_max_conns", env.integer("DB_MAX_CONNS", 10), "Maximum open database connections.")
	fs.DurationVar(&cfg.StatementTimeout, "statement_timeout", env.duration("STATEMENT_TIMEOUT", 30*time.Second), "Per-statement timeout (0 disables).")
	fs.IntVar(&cfg.DiscoveryWorkers, "discovery_workers", env.integer("DISCOVERY_WORKERS", 4), "Concurrent table lookups during discovery.")

	// HTTP
	fs.StringVar(&cfg.Addr, "addr", env.str("LISTEN_ADDR", ":8080"), "HTTP listen address.")
	fs.Int64Var(&cfg.MaxBodyBytes, "max_body_bytes", int64(env.integer("MAX_BODY_BYTES", 1<<20)), "Maximum request body size in bytes.")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown_timeout", env.duration("SHUTDOWN_TIMEOUT", 10*time.Second), "Grace period for in-flight requests on shutdown.")

	// Metrics
	fs.StringVar(&cfg.MetricsBackend, "metrics_backend", env.str("METRICS_BACKEND", "prometheus"), "Metrics backend: prometheus, datadog or none.")
	fs.BoolVar(&cfg.MetricsRuntime, "metrics_runtime", env.boolean("METRICS_RUNTIME", true), "Prometheus only: export Go runtime and process metrics.")
	fs.StringVar(&cfg.DatadogAddr, "datadog_addr", env.str("DD_AGENT_ADDR", "127.0.0.1:8125"), "DogStatsD agent address.")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is the production entry point. It wires the loader to the process
// flag set, reads environment variables via os.Getenv, and parses
// os.Args[1:].
func Load() (*Config, error) {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// DatabaseDSN returns the DSN to connect with. For postgres without an
// explicit DSN it is built from the discrete DB_* parts.
func (c *Config) DatabaseDSN() string {
	if c.DSN != "" || c.DBKind != "postgres" {
		return c.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// envReader reads typed values from an environment lookup function,
// falling back to a default when the variable is unset or unparsable.
type envReader func(string) string

func (e envReader) str(k, d string) string {
	if v := e(k); v != "" {
		return v
	}
	return d
}

func (e envReader) integer(k string, d int) int {
	if v := e(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

// boolean accepts "1/0", "true/false", "yes/no" and "on/off", case-insensitive.
func (e envReader) boolean(k string, d bool) bool {
	switch strings.ToLower(e(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

// duration accepts Go duration strings ("1500ms", "30s") and bare
// integers, read as seconds.
func (e envReader) duration(k string, d time.Duration) time.Duration {
	v := e(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	if p, err := time.ParseDuration(v); err == nil {
		return p
	}
	return d
}
