package query

import (
	"fmt"
	"strconv"
	"strings"

	"natto/internal/schema"
)

// Dialect captures the syntax differences between the supported databases:
// placeholder style, identifier quoting, the case-insensitive match
// operator, RETURNING support, and pagination syntax.
type Dialect struct {
	Name string
	// Returning reports whether DELETE/INSERT ... RETURNING * is supported.
	Returning bool

	placeholder func(n int) string
	quote       func(id string) string
	// like is the case-insensitive pattern operator, including any ESCAPE
	// clause needed for backslash escapes.
	like string
	// escaper makes a keyword match literally inside a LIKE pattern.
	escaper *strings.Replacer
	// fetch selects OFFSET ... ROWS FETCH NEXT ... ROWS ONLY pagination.
	fetch bool
}

var (
	// Postgres renders $n placeholders and ILIKE.
	Postgres = Dialect{
		Name:        "postgres",
		Returning:   true,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		quote:       pgIdent,
		like:        "ILIKE",
		escaper:     likeEscaper,
	}

	// SQLite renders ?n placeholders. LIKE is case-insensitive for ASCII.
	SQLite = Dialect{
		Name:        "sqlite",
		Returning:   true,
		placeholder: func(n int) string { return "?" + strconv.Itoa(n) },
		quote:       quoteDouble,
		like:        `LIKE %s ESCAPE '\'`,
		escaper:     likeEscaper,
	}

	// MSSQL renders @pn placeholders and bracket-quoted identifiers.
	MSSQL = Dialect{
		Name:        "mssql",
		placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
		quote:       func(id string) string { return "[" + strings.ReplaceAll(id, "]", "]]") + "]" },
		like:        `LIKE %s ESCAPE '\'`,
		escaper:     mssqlLikeEscaper,
		fetch:       true,
	}

	// MySQL renders ? placeholders, which bind strictly in order of
	// appearance; the builders always append args in placeholder order.
	MySQL = Dialect{
		Name:        "mysql",
		placeholder: func(int) string { return "?" },
		quote:       func(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" },
		like:        "LIKE",
		escaper:     likeEscaper,
	}
)

var (
	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	// SQL Server also treats [ as the start of a character class.
	mssqlLikeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `[`, `\[`)
)

// DialectFor returns the dialect for a storage kind.
func DialectFor(kind string) (Dialect, error) {
	switch kind {
	case "postgres":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	case "mssql":
		return MSSQL, nil
	case "mysql":
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("no SQL dialect for storage kind %q", kind)
}

// Placeholder renders the n-th (1-based) parameter placeholder.
func (d Dialect) Placeholder(n int) string { return d.placeholder(n) }

// Ident quotes a catalog identifier.
func (d Dialect) Ident(id string) string { return d.quote(id) }

// escapeLike makes the pattern characters of s match literally.
func (d Dialect) escapeLike(s string) string { return d.escaper.Replace(s) }

// likeExpr renders "<lhs> <case-insensitive like> <placeholder>".
func (d Dialect) likeExpr(lhs, ph string) string {
	if strings.Contains(d.like, "%s") {
		return lhs + " " + fmt.Sprintf(d.like, ph)
	}
	return lhs + " " + d.like + " " + ph
}

// textCast reports whether a String column must be cast to text before a
// pattern match. Postgres has no LIKE operator for uuid.
func (d Dialect) textCast(c schema.Column) bool {
	return d.Name == "postgres" && strings.EqualFold(c.DataType, "uuid")
}

// pgIdent leaves plain lowercase identifiers bare and double-quotes the
// rest, doubling embedded quotes.
func pgIdent(id string) string {
	if isPlainIdent(id) && !pgReserved[id] {
		return id
	}
	return quoteDouble(id)
}

func quoteDouble(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

func isPlainIdent(id string) bool {
	if id == "" {
		return false
	}
	for i, r := range id {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// pgReserved lists the Postgres keywords that cannot be used as bare
// column names (pg_get_keywords() catcode 'R' and 'T'). Some of them, such as
// current_timestamp, parse as function calls when left unquoted.
var pgReserved = func() map[string]bool {
	m := make(map[string]bool)
	for _, k := range strings.Fields(`
		all analyse analyze and any array as asc asymmetric authorization
		binary both case cast check collate collation column concurrently
		constraint create cross current_catalog current_date current_role
		current_schema current_time current_timestamp current_user default
		deferrable desc distinct do else end except false fetch for foreign
		freeze from full grant group having ilike in initially inner
		intersect into is isnull join lateral leading left like limit
		localtime localtimestamp natural not notnull null offset on only or
		order outer overlaps placing primary references returning right
		select session_user similar some symmetric system_user table
		tablesample then to trailing true union unique user using variadic
		verbose when where window with`) {
		m[k] = true
	}
	return m
}()
