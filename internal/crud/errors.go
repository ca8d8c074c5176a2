package crud

import "fmt"

// TableNotFoundError is returned when a request names a table that is not
// in the catalog.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table not found: %s", e.Table)
}

// ExecutionError wraps a failure reported by the database while running a
// built statement.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: query execution failed: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
