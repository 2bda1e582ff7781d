package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types shared by the session, the HTTP layer and the CLI.
var (
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrBusy             = new(ErrCodeBusy, "operation already in progress")
	ErrHTTPClient       = new(ErrCodeHTTPClient, "http client error")
	ErrAssistant        = new(ErrCodeAssistant, "assistant error")
	ErrPersistence      = new(ErrCodePersistence, "persistence error")
	ErrExport           = new(ErrCodeExport, "export error")
	ErrSystem           = new(ErrCodeSystemError, "system error")
	// maps errors to http status codes, most specific first
	statusCodes = []struct {
		err    *InternalError
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidOperation, http.StatusBadRequest},
		{ErrBusy, http.StatusConflict},
		{ErrAssistant, http.StatusBadGateway},
		{ErrHTTPClient, http.StatusBadGateway},
		{ErrPersistence, http.StatusInternalServerError},
		{ErrExport, http.StatusInternalServerError},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeNotFound         = "not_found"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeBusy             = "busy"
	ErrCodeHTTPClient       = "http_client_error"
	ErrCodeAssistant        = "assistant_error"
	ErrCodePersistence      = "persistence_error"
	ErrCodeExport           = "export_error"
	ErrCodeSystemError      = "system_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

// New creates an InternalError carrying a code, used by packages that need
// their own typed errors on top of the sentinels.
func New(code string, message string) *InternalError {
	return new(code, message)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

func IsAssistant(err error) bool {
	return errors.Is(err, ErrAssistant)
}

func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// Code returns the machine-readable code of the first sentinel matching err.
func Code(err error) string {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.err.Code
		}
	}
	return ErrCodeSystemError
}

// Hints returns the user-facing hints attached along the chain, joined.
func Hints(err error) string {
	return errors.FlattenHints(err)
}

func HTTPStatusFromErr(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}
