// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// reservation service and handlers to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a conditional update matched no rows
// because the row changed since it was read (room or booking version
// mismatch) or the requested dates overlap an existing line. Handlers
// should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a lookup by id or code matches nothing.
var ErrNotFound = errors.New("not found")

// ErrInvoiceUnavailable means the invoices table is not present in the
// connected schema.
var ErrInvoiceUnavailable = errors.New("invoice table unavailable")

// isDuplicateKey matches MySQL error 1062 and SQLite UNIQUE violations.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "1062") || strings.Contains(s, "unique constraint failed")
}

// isMissingTable matches MySQL error 1146 and SQLite "no such table".
func isMissingTable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "1146") || strings.Contains(s, "no such table")
}
