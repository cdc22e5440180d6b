package reservation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/homestay-reservation/internal/repository"
)

var (
	ErrAlreadyVerified = errors.New("booking already verified")
	ErrNoCode          = errors.New("no verification code issued")
	ErrCodeExpired     = errors.New("verification code expired")
	ErrCodeMismatch    = errors.New("verification code does not match")
	ErrInvalidState    = errors.New("booking state does not allow this operation")

	ErrForbidden = repository.ErrForbidden
	ErrNotFound  = repository.ErrNotFound
)

// ConflictError reports rooms that could not be held, either because the
// dates overlap an existing line or because the room row changed under the
// transaction. It matches repository.ErrConflict with errors.Is.
type ConflictError struct {
	RoomIDs []uint64
	Reason  string
}

func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.RoomIDs))
	for _, id := range e.RoomIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return fmt.Sprintf("%s: rooms [%s]", e.Reason, strings.Join(ids, ","))
}

func (e *ConflictError) Unwrap() error { return repository.ErrConflict }

// ValidationError carries per-field messages keyed by JSON path, e.g.
// "lines[0].check_out".
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
