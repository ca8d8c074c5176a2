package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var kinds = []string{"mssql", "mysql", "postgres", "sqlite"}

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validConfig() Config {
	return Config{
		DBKind:           "postgres",
		DSN:              "postgres://u:p@localhost/db",
		MaxConns:         10,
		StatementTimeout: 30 * time.Second,
		DiscoveryWorkers: 4,
		Addr:             ":8080",
		MaxBodyBytes:     1 << 20,
		ShutdownTimeout:  10 * time.Second,
		MetricsBackend:   "prometheus",
	}
}

func TestValidate_ValidMinimal(t *testing.T) {
	t.Parallel()

	c := validConfig()
	if issues := c.Validate(kinds); len(issues) != 0 {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}

func TestValidate_Issues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"unknown kind", func(c *Config) { c.DBKind = "oracle" }, SeverityError, "db_kind", `unsupported kind "oracle"`},
		{"empty kind", func(c *Config) { c.DBKind = " " }, SeverityError, "db_kind", "must not be empty"},
		{"sqlite without dsn", func(c *Config) { c.DBKind = "sqlite"; c.DSN = ""; c.MaxConns = 1 }, SeverityError, "dsn", "sqlite requires a DSN"},
		{"sqlite pool", func(c *Config) { c.DBKind = "sqlite"; c.DSN = "x.db" }, SeverityWarning, "db_max_conns", "SQLITE_BUSY"},
		{"negative conns", func(c *Config) { c.MaxConns = -1 }, SeverityError, "db_max_conns", "negative"},
		{"negative timeout", func(c *Config) { c.StatementTimeout = -time.Second }, SeverityError, "statement_timeout", "negative"},
		{"no timeout", func(c *Config) { c.StatementTimeout = 0 }, SeverityWarning, "statement_timeout", "without a timeout"},
		{"no workers", func(c *Config) { c.DiscoveryWorkers = 0 }, SeverityWarning, "discovery_workers", "sequentially"},
		{"bad addr", func(c *Config) { c.Addr = "8080" }, SeverityError, "addr", "invalid listen address"},
		{"zero body", func(c *Config) { c.MaxBodyBytes = 0 }, SeverityError, "max_body_bytes", "positive"},
		{"default password", func(c *Config) { c.DSN = ""; c.DBPassword = "password" }, SeverityWarning, "db_password", "default password"},
		{"unknown metrics", func(c *Config) { c.MetricsBackend = "graphite" }, SeverityError, "metrics_backend", "graphite"},
		{"datadog without addr", func(c *Config) { c.MetricsBackend = "datadog" }, SeverityError, "datadog_addr", "agent address"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := validConfig()
			tc.mutate(&c)
			issues := c.Validate(kinds)
			if !hasIssue(issues, tc.sev, tc.path, tc.msg) {
				t.Fatalf("missing %s at %s (%q); got %+v", tc.sev, tc.path, tc.msg, issues)
			}
		})
	}
}

func TestErr(t *testing.T) {
	t.Parallel()

	if Err([]Issue{{Severity: SeverityWarning, Path: "x", Message: "y"}}) != nil {
		t.Fatalf("warnings alone should not produce an error")
	}
	iss := Issue{Severity: SeverityError, Path: "addr", Message: "bad"}
	err := Err([]Issue{iss, {Severity: SeverityWarning}})
	var got Issue
	if !errors.As(err, &got) || got != iss {
		t.Fatalf("Err = %v", err)
	}
	if err.Error() != "error at addr: bad" {
		t.Fatalf("message = %q", err.Error())
	}
}
