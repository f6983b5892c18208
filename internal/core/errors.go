package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidHours     = errors.New("invalid hours")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyTitle       = errors.New("empty title")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidProgress  = errors.New("progress must be between 0 and 100")
	ErrInvalidReference = errors.New("invalid reference")
	ErrTotalMismatch    = errors.New("total amount must equal amount plus tax")
	ErrAlreadyBilled    = errors.New("time entry already billed")
	ErrNotBillable      = errors.New("time entry is not billable")
	ErrWrongProject     = errors.New("time entry belongs to another project")
	ErrEmptySelection   = errors.New("no time entries selected")
	ErrUnknownEntry     = errors.New("time entry does not exist")
	ErrHasInvoices      = errors.New("referenced by invoices")
)

// ValidationError reports invalid or cross-entity-inconsistent input.
// EntryID is set when a specific time entry is at fault.
type ValidationError struct {
	Field   string
	EntryID int64
	Err     error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	if e.EntryID != 0 {
		b.WriteString(": time entry ")
		b.WriteString(strconv.FormatInt(e.EntryID, 10))
	} else if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a field-level ValidationError.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// InvalidEntry builds a ValidationError naming the offending time entry.
func InvalidEntry(id int64, err error) error {
	return &ValidationError{Field: "time_entry_ids", EntryID: id, Err: err}
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError reports a concurrent attempt to bill the same time entries.
// Callers should refresh the unbilled list and retry.
type ConflictError struct {
	EntryIDs []int64
	Reason   string
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.EntryIDs))
	for i, id := range e.EntryIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	msg := "billing conflict"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(ids) > 0 {
		msg += " (entries " + strings.Join(ids, ",") + ")"
	}
	return msg
}

// StorageError wraps any failure coming from the persistence store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError unless it already is a domain error.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsDomainError reports whether err is one of the typed errors of this package.
func IsDomainError(err error) bool {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		se *StorageError
	)
	return errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &se)
}

// ErrorKind returns a short machine-readable classification of err.
func ErrorKind(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		se *StorageError
	)
	switch {
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &nf):
		return "not_found_error"
	case errors.As(err, &ce):
		return "conflict_error"
	case errors.As(err, &se):
		return "storage_error"
	default:
		return "internal_error"
	}
}
