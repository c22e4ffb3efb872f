package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/repository"
)

// Kind classifies a failure so callers can render it without parsing messages.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
	KindQuota      Kind = "QUOTA"
	KindState      Kind = "STATE"
	KindNotFound   Kind = "NOT_FOUND"
	KindForbidden  Kind = "FORBIDDEN"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrQuota      = errors.New("quota exceeded")
	ErrState      = errors.New("invalid state")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

var kindSentinels = map[Kind]error{
	KindValidation: ErrValidation,
	KindConflict:   ErrConflict,
	KindQuota:      ErrQuota,
	KindState:      ErrState,
	KindNotFound:   ErrNotFound,
	KindForbidden:  ErrForbidden,
}

// Error is returned by every service operation that fails for a domain reason.
// Details carries structured context for the caller (field names, ids, windows).
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Is(target error) bool { return kindSentinels[e.Kind] == target }

func (e *Error) Unwrap() error { return e.Err }

// With adds a detail and returns e for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func validationError(op, field, format string, args ...any) *Error {
	return newError(KindValidation, op, format, args...).With("field", field)
}

func conflictError(op, format string, args ...any) *Error {
	return newError(KindConflict, op, format, args...)
}

func quotaError(op, format string, args ...any) *Error {
	return newError(KindQuota, op, format, args...)
}

func stateError(op, format string, args ...any) *Error {
	return newError(KindState, op, format, args...)
}

func notFoundError(op, entity string, id uint64) *Error {
	return newError(KindNotFound, op, "%s %d not found", entity, id).With("id", id)
}

func forbiddenError(op, format string, args ...any) *Error {
	return newError(KindForbidden, op, format, args...)
}

// KindOf returns the kind of err, or "" for unexpected failures.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// translate maps persistence and model errors onto service errors. Anything
// it does not recognize is wrapped with op and passed through.
func translate(op, entity string, id uint64, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	var te *model.TransitionError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFoundError(op, entity, id)
	case errors.Is(err, repository.ErrDuplicate):
		e := conflictError(op, "%s already exists", entity)
		e.Err = err
		return e
	case errors.As(err, &te):
		e := stateError(op, "%s", te.Error()).With("from", te.From).With("to", te.To)
		e.Err = err
		return e
	}
	return fmt.Errorf("%s: %w", op, err)
}

// resultLabel renders err as a low-cardinality metrics label.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if k := KindOf(err); k != "" {
		return strings.ToLower(string(k))
	}
	return "error"
}
