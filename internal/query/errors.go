package query

import (
	"errors"
	"fmt"
)

// ErrNoValidColumns is returned by Insert when no payload key names a
// column of the table.
var ErrNoValidColumns = errors.New("no valid columns provided for insertion")

// NoPrimaryKeyError is returned by Delete for tables without a primary key.
type NoPrimaryKeyError struct {
	Table string
}

func (e *NoPrimaryKeyError) Error() string {
	return fmt.Sprintf("table does not have a primary key: %s", e.Table)
}

// UnknownSortColumnError is returned by Select when a sort specifier names a
// column the table does not have.
type UnknownSortColumnError struct {
	Table  string
	Column string
}

func (e *UnknownSortColumnError) Error() string {
	return fmt.Sprintf("unknown sort column %q for table %s", e.Column, e.Table)
}

// InvalidPaginationError is returned by Select for negative limit or offset.
type InvalidPaginationError struct {
	Field string
	Value int
}

func (e *InvalidPaginationError) Error() string {
	return fmt.Sprintf("%s must be a non-negative integer, got %d", e.Field, e.Value)
}
