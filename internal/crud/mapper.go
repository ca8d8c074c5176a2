package crud

import (
	"natto/internal/jsonutil"
	"natto/internal/schema"
)

// MapRows converts driver rows into records keyed by column name in catalog
// column order. The first value that fails to convert aborts the whole
// mapping; no partial result is returned.
func MapRows(t *schema.Table, enc *jsonutil.RecordEncoder, rows [][]any) ([]jsonutil.Record, error) {
	out := make([]jsonutil.Record, 0, len(rows))
	for _, row := range rows {
		vals := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			v, err := schema.FromNative(c, row, i)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		rec, err := enc.Record(vals)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
