package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks startup.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is logged; startup continues.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path names the flag.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static checks over c. kinds lists the registered
// storage kinds. It does not mutate c.
func (c *Config) Validate(kinds []string) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch {
	case strings.TrimSpace(c.DBKind) == "":
		add(SeverityError, "db_kind", "db_kind must not be empty")
	case !slices.Contains(kinds, c.DBKind):
		add(SeverityError, "db_kind", "unsupported kind %q (registered: %s)", c.DBKind, strings.Join(kinds, ", "))
	}
	if c.DBKind != "postgres" && strings.TrimSpace(c.DSN) == "" {
		add(SeverityError, "dsn", "%s requires a DSN", c.DBKind)
	}
	if c.DBKind == "postgres" && c.DSN == "" && c.DBPassword == "password" {
		add(SeverityWarning, "db_password", "using the built-in default password")
	}
	if c.DBKind == "sqlite" && c.MaxConns > 1 {
		add(SeverityWarning, "db_max_conns", "sqlite serializes writers; concurrent writes may hit SQLITE_BUSY")
	}

	if c.MaxConns < 0 {
		add(SeverityError, "db_max_conns", "must not be negative, got %d", c.MaxConns)
	}
	if c.StatementTimeout < 0 {
		add(SeverityError, "statement_timeout", "must not be negative, got %s", c.StatementTimeout)
	}
	if c.StatementTimeout == 0 {
		add(SeverityWarning, "statement_timeout", "statements run without a timeout")
	}
	if c.DiscoveryWorkers < 1 {
		add(SeverityWarning, "discovery_workers", "%d workers; discovery will run sequentially", c.DiscoveryWorkers)
	}

	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		add(SeverityError, "addr", "invalid listen address %q: %v", c.Addr, err)
	}
	if c.MaxBodyBytes <= 0 {
		add(SeverityError, "max_body_bytes", "must be positive, got %d", c.MaxBodyBytes)
	}
	if c.ShutdownTimeout < 0 {
		add(SeverityError, "shutdown_timeout", "must not be negative, got %s", c.ShutdownTimeout)
	}

	switch c.MetricsBackend {
	case "prometheus", "none", "":
	case "datadog":
		if strings.TrimSpace(c.DatadogAddr) == "" {
			add(SeverityError, "datadog_addr", "datadog backend requires an agent address")
		}
	default:
		add(SeverityError, "metrics_backend", "unknown backend %q", c.MetricsBackend)
	}
	return issues
}

// Err joins the error-severity issues into one error, or returns nil when
// there are none.
func Err(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}
