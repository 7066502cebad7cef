package core

import "github.com/pkg/errors"

// FieldError attributes a rejection to one named field, as reported by
// request validation or by the administrative API.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries the per-field rejections of a chat request or
// of an administrative API call.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown marks an unrecoverable state; the HTTP layer stops the API
// server when a handler returns one.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
