// Package errors carries the error values the REST layer turns into responses.
// Messages are client facing: the handler writes them into the body as is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType classifies an AppError for the response body and the logs.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeBadRequest   ErrorType = "BAD_REQUEST"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeRateLimit    ErrorType = "RATE_LIMIT"
	ErrorTypeInternal     ErrorType = "INTERNAL"
)

// statuses maps every type to the HTTP status it is answered with.
var statuses = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeBadRequest:   http.StatusBadRequest,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeUnauthorized: http.StatusUnauthorized,
	ErrorTypeForbidden:    http.StatusForbidden,
	ErrorTypeRateLimit:    http.StatusTooManyRequests,
	ErrorTypeInternal:     http.StatusInternalServerError,
}

// AppError is an error with a client facing message and a status.
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Cause      error     `json:"-"`
	StackTrace string    `json:"-"`
	HTTPStatus int       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCause records the engine or decoding error behind e. It never reaches the client.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newError(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		HTTPStatus: statuses[t],
		StackTrace: callers(),
	}
}

// callers renders the stack above the constructor, one frame per line.
func callers() string {
	var pcs [32]uintptr
	n := runtime.Callers(4, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			return b.String()
		}
	}
}

// NewValidationError reports a request that failed struct validation or could not be parsed.
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, message)
}

// NewBadRequestError reports a well formed request that references something unusable,
// such as a link to a node of the wrong class.
func NewBadRequestError(message string) *AppError {
	return newError(ErrorTypeBadRequest, message)
}

func NewNotFoundError(message string) *AppError {
	return newError(ErrorTypeNotFound, message)
}

// NewConflictError reports a body that cannot be applied to the addressed property.
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, message)
}

func NewUnauthorizedError(message string) *AppError {
	return newError(ErrorTypeUnauthorized, message)
}

func NewForbiddenError(message string) *AppError {
	return newError(ErrorTypeForbidden, message)
}

func NewRateLimitError() *AppError {
	return newError(ErrorTypeRateLimit, "Rate limit exceeded")
}

func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, message)
}

// GetAppError returns the first AppError in err's chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func IsNotFound(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeNotFound
}
