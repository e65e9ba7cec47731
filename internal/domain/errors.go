package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports an unknown worker reference or missing row.
var ErrNotFound = errors.New("not found")

type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Unwrap() error { return ErrNotFound }

// NotFoundf wraps ErrNotFound with a message naming what was missing, so
// a missing payroll run does not surface as a missing worker.
func NotFoundf(format string, args ...any) error {
	return &notFoundError{msg: fmt.Sprintf(format, args...)}
}

// ValidationError is a user-correctable input problem: malformed range,
// missing GPS fields, negative adjustment, or a lost check-in race
// (the racing writer already succeeded, so the caller just retries).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ForbiddenError carries the specific policy violated (role check, week
// lock, double-booking guard, unlock reason too short) so the UI can
// explain it.
type ForbiddenError struct {
	Policy string
}

func (e *ForbiddenError) Error() string { return e.Policy }

func Forbiddenf(format string, args ...any) error {
	return &ForbiddenError{Policy: fmt.Sprintf(format, args...)}
}

func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}
