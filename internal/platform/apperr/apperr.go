// Package apperr defines the error kinds shared by the domain services and
// their mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ValidationError reports input the caller must fix.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// kindError pairs a client-facing message with one of the sentinel kinds.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NotFound returns an error matching ErrNotFound with msg as its text.
func NotFound(msg string) error {
	return &kindError{kind: ErrNotFound, msg: msg}
}

// Conflict returns an error matching ErrConflict with msg as its text.
func Conflict(msg string) error {
	return &kindError{kind: ErrConflict, msg: msg}
}

// Invalid returns a ValidationError.
func Invalid(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ToHTTP converts a domain error into an echo.HTTPError. Errors of no known
// kind are returned unchanged so the error handler logs them as 500s.
func ToHTTP(err error) error {
	if err == nil {
		return nil
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Msg)
	}

	var ke *kindError
	if errors.As(err, &ke) {
		switch ke.kind {
		case ErrNotFound:
			return echo.NewHTTPError(http.StatusNotFound, ke.msg)
		case ErrConflict:
			return echo.NewHTTPError(http.StatusConflict, ke.msg)
		}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	}

	return err
}
