package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies engine errors.
type ErrorType string

const (
	ErrorTypeDomain         ErrorType = "DOMAIN_ERROR"
	ErrorTypeValidation     ErrorType = "VALIDATION_ERROR"
	ErrorTypeInfrastructure ErrorType = "INFRASTRUCTURE_ERROR"
	ErrorTypeAuthentication ErrorType = "AUTHENTICATION_ERROR"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeConflict       ErrorType = "CONFLICT_ERROR"
	ErrorTypeInternal       ErrorType = "INTERNAL_ERROR"
)

// Common engine errors.
var (
	ErrNotSignedIn   = errors.New("no active session")
	ErrInvalidToken  = errors.New("invalid session token")
	ErrTokenExpired  = errors.New("session token expired")
	ErrEmptyListName = errors.New("list name must not be empty")
	ErrListNotFound  = errors.New("list not found")
	ErrNotHydrated   = errors.New("store not hydrated")
)

// Saved-collection specific errors.
var (
	// ErrStaleAccountWrite marks a persistence job whose scheduling session no
	// longer matches the bound account. Expected during sign-out races and
	// dropped silently, never surfaced to callers.
	ErrStaleAccountWrite = errors.New("stale account write dropped")

	// ErrWriteFailed wraps a remote persistence failure. Local state stays
	// authoritative; the next mutation re-sends the full document.
	ErrWriteFailed = errors.New("remote write failed")

	// ErrAggregateNotLoaded signals that no aggregate snapshot has been
	// observed yet for a place, so counters must not be rendered.
	ErrAggregateNotLoaded = errors.New("place aggregate not loaded")

	ErrInvalidPlacePin = errors.New("invalid place pin")
	ErrFeedClosed      = errors.New("aggregate feed closed")
)

// AppError is an engine error with classification and context.
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new engine error.
func NewAppError(errorType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithCause adds the underlying cause.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent adds the originating component name.
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

// WithDetail adds a detail field.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewValidationError creates a validation error. Validation failures are the
// only error class surfaced synchronously to presentation code.
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, message)
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *AppError {
	return NewAppError(ErrorTypeAuthentication, message)
}

// NewInfrastructureError creates an infrastructure error.
func NewInfrastructureError(message string) *AppError {
	return NewAppError(ErrorTypeInfrastructure, message)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, message)
}

// WrapError wraps an error with context unless it is already an AppError.
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeValidation
	}
	return errors.Is(err, ErrEmptyListName)
}

// IsNotSignedIn reports whether err signals a missing or invalid session.
func IsNotSignedIn(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeAuthentication
	}
	return errors.Is(err, ErrNotSignedIn) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired)
}

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == ErrorTypeNotFound
	}
	return errors.Is(err, ErrListNotFound)
}

// IsStaleWrite reports whether err marks a dropped cross-account write.
func IsStaleWrite(err error) bool {
	return errors.Is(err, ErrStaleAccountWrite)
}
