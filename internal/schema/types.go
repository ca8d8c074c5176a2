// Package schema holds the in-memory catalog of tables and typed columns and
// the conversion contract between JSON values and database-native values.
//
// Everything in this package is immutable once constructed. A *Catalog is
// built once at startup from discovered tables and then shared read-only by
// every request goroutine; there is no mutation API.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ColumnType is the closed set of scalar types the service understands.
// Every switch over ColumnType names all variants; an unknown value is an
// explicit error at each conversion site.
type ColumnType int

const (
	Boolean ColumnType = iota + 1
	String
	Integer
	Float
	Numeric
)

// AllTypes lists every declared ColumnType in declaration order.
var AllTypes = []ColumnType{Boolean, String, Integer, Float, Numeric}

// String returns the external name of t ("boolean", "string", ...).
func (t ColumnType) String() string {
	switch t {
	case Boolean:
		return "boolean"
	case String:
		return "string"
	case Integer:
		return "integer"
	case Float:
		return "float"
	case Numeric:
		return "numeric"
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// Valid reports whether t is one of the declared variants.
func (t ColumnType) Valid() bool {
	switch t {
	case Boolean, String, Integer, Float, Numeric:
		return true
	}
	return false
}

// ParseType parses an external type name as produced by ColumnType.String.
func ParseType(name string) (ColumnType, error) {
	for _, t := range AllTypes {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown column type %q", name)
}

// MarshalJSON encodes t as its external name.
func (t ColumnType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("marshal %s: not a declared column type", t)
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an external type name.
func (t *ColumnType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseDataType maps a database type name (information_schema.columns
// data_type on Postgres, MySQL and SQL Server) onto a ColumnType and its
// native width in bits. Width is only meaningful for Integer (16/32/64) and
// Float (32/64). ok is false for types the service cannot convert.
func ParseDataType(dataType string) (t ColumnType, bits int, ok bool) {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "boolean", "bool", "bit":
		return Boolean, 0, true
	case "text", "character varying", "varchar", "character", "char", "bpchar",
		"nvarchar", "nchar", "ntext", "uuid", "uniqueidentifier", "citext",
		"tinytext", "mediumtext", "longtext", "enum":
		return String, 0, true
	case "smallint", "int2", "tinyint":
		return Integer, 16, true
	case "integer", "int", "int4", "mediumint":
		return Integer, 32, true
	case "bigint", "int8":
		return Integer, 64, true
	case "real", "float4":
		return Float, 32, true
	case "double precision", "float8", "double", "float":
		return Float, 64, true
	case "numeric", "decimal":
		return Numeric, 0, true
	}
	return 0, 0, false
}

// ParseSQLiteDeclType maps a SQLite declared column type using SQLite's
// type-affinity rules, with BOOL checked first so BOOLEAN columns round-trip
// as booleans. NUMERIC affinity is only accepted for declared decimal types:
// the driver decodes DATE, DATETIME and TIMESTAMP columns as time.Time, which
// no ColumnType can carry, so those and any other unmatched type report
// ok=false.
func ParseSQLiteDeclType(decl string) (t ColumnType, bits int, ok bool) {
	d := strings.ToUpper(strings.TrimSpace(decl))
	switch {
	case strings.Contains(d, "BOOL"):
		return Boolean, 0, true
	case strings.Contains(d, "INT"):
		return Integer, 64, true
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return String, 0, true
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return Float, 64, true
	case d == "", strings.Contains(d, "BLOB"):
		// BLOB affinity stores values as given; text is the only lossless
		// representation the service can offer for it.
		return String, 0, true
	case strings.HasPrefix(d, "NUMERIC"), strings.HasPrefix(d, "DECIMAL"):
		return Numeric, 0, true
	}
	return 0, 0, false
}
