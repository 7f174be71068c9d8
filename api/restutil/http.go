// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package restutil carries the helpers shared by the REST handlers:
// error-returning handler funcs with status mapping, and strict JSON codecs.
package restutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// statusError pins an http status to a cause. WrapHandlerFunc renders the
// status; errors.Is still matches the cause through Unwrap.
type statusError struct {
	status int
	cause  error
}

func (e *statusError) Error() string {
	return e.cause.Error()
}

func (e *statusError) Unwrap() error {
	return e.cause
}

// BadRequest marks cause to respond 400.
func BadRequest(cause error) error {
	return &statusError{http.StatusBadRequest, cause}
}

// Forbidden marks cause to respond 403.
func Forbidden(cause error) error {
	return &statusError{http.StatusForbidden, cause}
}

// NotFound marks cause to respond 404.
func NotFound(cause error) error {
	return &statusError{http.StatusNotFound, cause}
}

// HandlerFunc is http.HandlerFunc with an error return.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// WrapHandlerFunc renders the handler's error: a marked error responds its
// status, anything else responds 500.
func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		var se *statusError
		if errors.As(err, &se) {
			http.Error(w, se.Error(), se.status)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ParseJSON decodes a request body, rejecting unknown fields.
func ParseJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// WriteJSON responds v as JSON.
func WriteJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(v)
}
