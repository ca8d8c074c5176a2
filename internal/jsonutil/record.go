// Ordered JSON records (no maps)
//
// Idea: precompute `"key":` byte prefixes once per table; for each row,
// write `{<prefix><value>,...}` into a pooled bytes.Buffer. Keys keep the
// order they were given in, which a Go map cannot do. Values are encoded
// with encoding/json so strings are escaped per RFC 8259.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
)

// RecordEncoder holds the precomputed key prefixes for one key order.
// It is safe for concurrent use.
type RecordEncoder struct {
	keys     []string
	index    map[string]int
	prefixes [][]byte
	bufPool  sync.Pool
}

// NewRecordEncoder returns an encoder for records with the given keys, in
// order.
func NewRecordEncoder(keys []string) *RecordEncoder {
	pfx := make([][]byte, len(keys))
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		qk, _ := json.Marshal(k) // a string always marshals
		pfx[i] = append(qk, ':')
		index[k] = i
	}
	return &RecordEncoder{
		keys:     append([]string(nil), keys...),
		index:    index,
		prefixes: pfx,
		bufPool:  sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}
}

// Keys returns the keys in encoding order.
func (e *RecordEncoder) Keys() []string { return append([]string(nil), e.keys...) }

// Record binds values, aligned with the encoder's keys, into a Record.
func (e *RecordEncoder) Record(values []any) (Record, error) {
	if len(values) != len(e.keys) {
		return Record{}, fmt.Errorf("jsonutil: %d values for %d keys", len(values), len(e.keys))
	}
	return Record{enc: e, values: values}, nil
}

// Record is an ordered key→value mapping that marshals as a JSON object
// with keys in encoder order.
type Record struct {
	enc    *RecordEncoder
	values []any
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	if r.enc == nil {
		return nil, false
	}
	i, ok := r.enc.index[key]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Len returns the number of keys.
func (r Record) Len() int { return len(r.values) }

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.enc == nil {
		return []byte("{}"), nil
	}
	buf := r.enc.bufPool.Get().(*bytes.Buffer)
	defer r.enc.bufPool.Put(buf)
	buf.Reset()

	buf.WriteByte('{')
	for i, v := range r.values {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(r.enc.prefixes[i])
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("jsonutil: key %q: %w", r.enc.keys[i], err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return append([]byte(nil), buf.Bytes()...), nil
}
