package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/car-rental-availability/internal/utils"
)

// Sentinels for errors.Is checks at the HTTP boundary.
var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("requested dates are unavailable")
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStorage           = errors.New("storage failure")
)

// ValidationError reports a malformed or missing field.  It is raised
// before any store access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConflictError carries the days that prevented a booking or a block.
// Dates may be empty when the conflict was only detected by the unique
// key at write time and could not be re-read.
type ConflictError struct {
	VehicleID string
	Dates     []time.Time
}

func (e *ConflictError) Error() string {
	if len(e.Dates) == 0 {
		return ErrConflict.Error()
	}
	return fmt.Sprintf("%s: %s", ErrConflict.Error(), strings.Join(e.DateStrings(), ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// DateStrings renders the conflicting days as YYYY-MM-DD.
func (e *ConflictError) DateStrings() []string {
	out := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		out = append(out, utils.FormatDay(d))
	}
	return out
}

// StorageError wraps a failure of the underlying store.  The surrounding
// transaction has been rolled back when it is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
