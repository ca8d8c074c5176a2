package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ConversionError reports a value that could not be converted to or from
// the native representation of a column.
type ConversionError struct {
	Column string
	Type   ColumnType
	Value  any
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error: column %q (%s): %s (value: %s)",
		e.Column, e.Type, e.Reason, describeValue(e.Value))
}

func convErr(c Column, v any, format string, args ...any) error {
	return &ConversionError{Column: c.Name, Type: c.Type, Value: v, Reason: fmt.Sprintf(format, args...)}
}

// describeValue renders v for error messages, bounding its length.
func describeValue(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		s = strconv.Quote(t)
	case []byte:
		s = strconv.Quote(string(t))
	default:
		s = fmt.Sprintf("%v (%T)", t, t)
	}
	const max = 64
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// ToNative converts a JSON-decoded value into the native value bound as a
// statement parameter for column c. JSON numbers are expected as
// json.Number (json.Decoder.UseNumber); float64 is accepted for callers
// decoding without it.
//
// Integer values must fit the column width; Float values must be finite and
// fit the column width; Numeric values must be decimal strings, never JSON
// numbers, so that precision travels as text.
func ToNative(c Column, v any) (any, error) {
	if v == nil {
		if c.Nullable {
			return nil, nil
		}
		return nil, convErr(c, v, "null is not allowed")
	}
	switch c.Type {
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, convErr(c, v, "expected a boolean")
		}
		return b, nil
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, convErr(c, v, "expected a string")
		}
		return s, nil
	case Integer:
		n, err := externalInt(v)
		if err != nil {
			return nil, convErr(c, v, "%v", err)
		}
		return narrowInt(c, v, n)
	case Float:
		f, err := externalFloat(v)
		if err != nil {
			return nil, convErr(c, v, "%v", err)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, convErr(c, v, "expected a finite number")
		}
		if c.Bits == 32 {
			if math.Abs(f) > math.MaxFloat32 {
				return nil, convErr(c, v, "out of range for a 32-bit float")
			}
			return float32(f), nil
		}
		return f, nil
	case Numeric:
		s, ok := v.(string)
		if !ok {
			return nil, convErr(c, v, "expected a decimal string; numbers are rejected to preserve precision")
		}
		n, err := parseDecimal(s)
		if err != nil {
			return nil, convErr(c, v, "%v", err)
		}
		return n, nil
	}
	return nil, convErr(c, v, "undeclared column type")
}

// FromNative reads the value at position i of a driver-decoded row and
// converts it into its JSON representation for column c: int64, float64,
// string, bool, decimal string, or nil for SQL NULL in nullable columns.
//
// Drivers decode the same SQL type differently (pgx returns int32 for
// integer, database/sql drivers int64; MySQL may return []byte; SQLite
// returns float64 or int64 for NUMERIC affinity), and each form is accepted.
func FromNative(c Column, row []any, i int) (any, error) {
	if i < 0 || i >= len(row) {
		return nil, convErr(c, nil, "column index %d out of range for row of %d values", i, len(row))
	}
	v := row[i]
	if v == nil {
		if c.Nullable {
			return nil, nil
		}
		return nil, convErr(c, v, "unexpected null in non-nullable column")
	}
	switch c.Type {
	case Boolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case int64:
			if t == 0 || t == 1 {
				return t == 1, nil
			}
		case []byte:
			if b, err := strconv.ParseBool(string(t)); err == nil {
				return b, nil
			}
			if len(t) == 1 && (t[0] == 0 || t[0] == 1) {
				return t[0] == 1, nil
			}
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b, nil
			}
		}
		return nil, convErr(c, v, "cannot read as boolean")
	case String:
		switch t := v.(type) {
		case string:
			return t, nil
		case []byte:
			return string(t), nil
		case [16]byte:
			return uuid.UUID(t).String(), nil
		}
		return nil, convErr(c, v, "cannot read as string")
	case Integer:
		switch t := v.(type) {
		case int16:
			return int64(t), nil
		case int32:
			return int64(t), nil
		case int64:
			return t, nil
		case int:
			return int64(t), nil
		case int8:
			return int64(t), nil
		case uint8:
			return int64(t), nil
		case []byte:
			if n, err := strconv.ParseInt(string(t), 10, 64); err == nil {
				return n, nil
			}
		case string:
			if n, err := strconv.ParseInt(t, 10, 64); err == nil {
				return n, nil
			}
		}
		return nil, convErr(c, v, "cannot read as integer")
	case Float:
		var f float64
		switch t := v.(type) {
		case float32:
			f = float64(t)
		case float64:
			f = t
		case int64:
			f = float64(t)
		case []byte:
			p, err := strconv.ParseFloat(string(t), 64)
			if err != nil {
				return nil, convErr(c, v, "cannot read as float")
			}
			f = p
		case string:
			p, err := strconv.ParseFloat(t, 64)
			if err != nil {
				return nil, convErr(c, v, "cannot read as float")
			}
			f = p
		default:
			return nil, convErr(c, v, "cannot read as float")
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, convErr(c, v, "non-finite float has no JSON representation")
		}
		return f, nil
	case Numeric:
		switch t := v.(type) {
		case pgtype.Numeric:
			if !t.Valid {
				return FromNative(c, []any{nil}, 0)
			}
			if t.NaN || t.InfinityModifier != pgtype.Finite {
				return nil, convErr(c, v, "non-finite numeric")
			}
			s, err := t.Value()
			if err != nil {
				return nil, convErr(c, v, "%v", err)
			}
			return s, nil
		case string:
			if _, err := parseDecimal(t); err != nil {
				return nil, convErr(c, v, "%v", err)
			}
			return t, nil
		case []byte:
			s := string(t)
			if _, err := parseDecimal(s); err != nil {
				return nil, convErr(c, v, "%v", err)
			}
			return s, nil
		case int64:
			return strconv.FormatInt(t, 10), nil
		case float64:
			if math.IsNaN(t) || math.IsInf(t, 0) {
				return nil, convErr(c, v, "non-finite numeric")
			}
			return strconv.FormatFloat(t, 'f', -1, 64), nil
		}
		return nil, convErr(c, v, "cannot read as numeric")
	}
	return nil, convErr(c, v, "undeclared column type")
}

// ParseKeyword interprets a filter keyword for column c. ok is false when
// the keyword is not a valid value for the column; the returned value is
// ready to be bound as a parameter.
func ParseKeyword(c Column, keyword string) (any, bool) {
	switch c.Type {
	case Integer:
		n, err := strconv.ParseInt(keyword, 10, 64)
		if err != nil {
			return nil, false
		}
		v, err := narrowInt(c, keyword, n)
		return v, err == nil
	case Float:
		f, err := strconv.ParseFloat(keyword, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		if c.Bits == 32 {
			if math.Abs(f) > math.MaxFloat32 {
				return nil, false
			}
			return float32(f), true
		}
		return f, true
	case String:
		return keyword, true
	case Boolean, Numeric:
		return nil, false
	}
	return nil, false
}

func externalInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := strconv.ParseInt(t.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a 64-bit integer")
		}
		return n, nil
	case float64:
		if t != math.Trunc(t) || t < math.MinInt64 || t >= math.MaxInt64 {
			return 0, fmt.Errorf("expected a 64-bit integer")
		}
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	}
	return 0, fmt.Errorf("expected an integer")
}

func externalFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number")
		}
		return f, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	}
	return 0, fmt.Errorf("expected a number")
}

// narrowInt converts n into the Go integer type matching the column width.
// Values outside the width are rejected rather than truncated.
func narrowInt(c Column, v any, n int64) (any, error) {
	switch c.Bits {
	case 16:
		if n < math.MinInt16 || n > math.MaxInt16 {
			return nil, convErr(c, v, "out of range for a 16-bit integer")
		}
		return int16(n), nil
	case 32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, convErr(c, v, "out of range for a 32-bit integer")
		}
		return int32(n), nil
	}
	return n, nil
}

// parseDecimal parses s as an arbitrary-precision, finite decimal.
func parseDecimal(s string) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if strings.TrimSpace(s) != s || s == "" {
		return n, fmt.Errorf("%q is not a decimal", s)
	}
	if err := n.Scan(s); err != nil {
		return n, fmt.Errorf("%q is not a decimal", s)
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return n, fmt.Errorf("%q is not a finite decimal", s)
	}
	return n, nil
}
