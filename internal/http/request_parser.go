// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data:
// bounded JSON bodies, path ids and list filters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// requestError is a malformed request, answered with 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &maxErr):
			return badRequest("request body exceeds %d bytes", maxErr.Limit)
		default:
			return badRequest("invalid JSON body: %v", err)
		}
	}
	if _, err := dec.Token(); err != io.EOF {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// pathID parses the {name} path segment as a positive id.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

// ParseIDFilter reads an optional positive id from the query string. An
// absent key yields 0, meaning no filter.
func ParseIDFilter(query url.Values, key string) (int64, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", key, v)
	}
	return id, nil
}

// NotificationParams holds the notification list filters.
type NotificationParams struct {
	UnreadOnly bool
	Limit      int
}

// ParseNotificationParams reads unread (bool) and limit (1..500) from the
// query string. limit defaults to 50.
func ParseNotificationParams(query url.Values) (NotificationParams, error) {
	params := NotificationParams{Limit: 50}
	if v := strings.TrimSpace(query.Get("unread")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, badRequest("invalid unread %q", v)
		}
		params.UnreadOnly = b
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return params, badRequest("invalid limit %q", v)
		}
		params.Limit = n
	}
	return params, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
