package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

const (
	CodeValidation      = "VALIDATION"
	CodeNotFound        = "NOT_FOUND"
	CodeAccessDenied    = "ACCESS_DENIED"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeExternalService = "EXTERNAL_SERVICE"
	CodePersistence     = "PERSISTENCE"
)

func Validation(msg string) *Error {
	return New(http.StatusBadRequest, CodeValidation, errors.New(msg))
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, CodeNotFound, errors.New(msg))
}

func AccessDenied(msg string) *Error {
	return New(http.StatusForbidden, CodeAccessDenied, errors.New(msg))
}

func Unauthenticated(msg string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, errors.New(msg))
}

// ExternalService errors are recovered to neutral defaults before they reach
// a handler; the constructor exists for logging and tests.
func ExternalService(err error) *Error {
	return New(http.StatusBadGateway, CodeExternalService, err)
}

func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistence, err)
}

// StatusOf maps any error to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// CodeOf maps any error to a taxonomy code, defaulting to PERSISTENCE.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	return CodePersistence
}
