package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// decode reads one JSON object from the request body into v, with numbers
// kept as json.Number. On failure it writes the error response and returns
// false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	err := dec.Decode(v)
	if err == nil {
		if _, extra := dec.Token(); extra != io.EOF {
			err = errors.New("unexpected data after JSON object")
		}
	}
	if err != nil {
		s.writeError(w, r, decodeError(err, s.cfg.MaxBodyBytes))
		return false
	}
	return true
}

func decodeError(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return &requestError{msg: fmt.Sprintf("request body exceeds %d bytes", limit), status: http.StatusRequestEntityTooLarge}
	case errors.Is(err, io.EOF):
		return &requestError{msg: "request body is empty"}
	}
	return &requestError{msg: "invalid JSON body: " + err.Error()}
}

// decodeValue decodes a single raw JSON value the same way request bodies
// are decoded.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// etagMatches reports whether an If-None-Match header value names etag.
func etagMatches(header, etag string) bool {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "*" || strings.TrimPrefix(part, "W/") == etag {
			return true
		}
	}
	return false
}
