package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	StatusCode int          `json:"-"`
	Fields     []FieldError `json:"fields,omitempty"`
	Internal   error        `json:"-"`

	// CurrentUpdatedAt carries the server-side version marker on concurrency
	// conflicts so clients can refresh and retry.
	CurrentUpdatedAt *time.Time `json:"currentUpdatedAt,omitempty"`

	// RetryAfter is populated on rate-limit rejections.
	RetryAfter time.Duration `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError carrying a specific message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "You do not own this resource",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrRateLimit = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Too many requests, please slow down",
		StatusCode: http.StatusTooManyRequests,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps malformed-input errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}

// NewValidation builds a 400 error carrying a field-level error list.
func NewValidation(fields []FieldError) *AppError {
	message := "Validation failed"
	if len(fields) == 1 {
		message = fields[0].Message
	}
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Fields:     fields,
	}
}

// NewDuplicate reports a unique-constraint violation as a client error.
func NewDuplicate(message string) *AppError {
	return &AppError{
		Code:       "DUPLICATE_RESOURCE",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewConflict reports an optimistic-concurrency mismatch carrying the current
// server-side updatedAt value.
func NewConflict(currentUpdatedAt time.Time) *AppError {
	return &AppError{
		Code:             "CONFLICT",
		Message:          "Record changed, please refresh",
		StatusCode:       http.StatusConflict,
		CurrentUpdatedAt: &currentUpdatedAt,
	}
}

// NewRateLimited reports a rate-limit rejection with a retry-after hint.
func NewRateLimited(retryAfter time.Duration) *AppError {
	cpy := *ErrRateLimit
	cpy.RetryAfter = retryAfter
	return &cpy
}
