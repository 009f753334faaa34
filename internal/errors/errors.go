package errors

import (
	"errors"
	"fmt"
)

// Code represents an error code for categorizing errors
type Code string

const (
	// CodeUnknown indicates an unknown error
	CodeUnknown Code = "unknown"

	// CodeInvalidArgument indicates the caller passed an invalid argument
	CodeInvalidArgument Code = "invalid_argument"

	// CodeConfiguration indicates a handler descriptor that can never be dispatched
	CodeConfiguration Code = "configuration"

	// CodeAlreadyRegistered indicates a subscriber registered twice without unregistering
	CodeAlreadyRegistered Code = "already_registered"

	// CodeNoHandlers indicates a subscriber registered with no handlers
	CodeNoHandlers Code = "no_handlers"

	// CodeInvalidEvent indicates an absent event was published
	CodeInvalidEvent Code = "invalid_event"

	// CodeHandlerFailed indicates one or more handlers failed during dispatch
	CodeHandlerFailed Code = "handler_failed"

	// CodeInternal indicates internal system error
	CodeInternal Code = "internal"
)

// Error represents an application error with code and metadata
type Error struct {
	// Code is the error code
	Code Code

	// Message is the error message
	Message string

	// Cause is the wrapped error
	Cause error

	// Meta contains additional context
	Meta map[string]any
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithMeta adds metadata to the error (builder pattern)
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// New creates a new error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new error with formatted message
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	// If it's already our error type, preserve the code
	var busErr *Error
	if errors.As(err, &busErr) {
		return &Error{
			Code:    busErr.Code,
			Message: message,
			Cause:   err,
			Meta:    copyMeta(busErr.Meta),
		}
	}

	return &Error{
		Code:    CodeUnknown,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific code
func WrapWithCode(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	wrapped := Wrap(err, message)
	wrapped.Code = code
	return wrapped
}

// InvalidArgument creates an invalid argument error
func InvalidArgument(message string) *Error {
	return New(CodeInvalidArgument, message)
}

// InvalidArgumentf creates a formatted invalid argument error
func InvalidArgumentf(format string, args ...any) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

// Configuration creates a configuration error
func Configuration(message string) *Error {
	return New(CodeConfiguration, message)
}

// Configurationf creates a formatted configuration error
func Configurationf(format string, args ...any) *Error {
	return Newf(CodeConfiguration, format, args...)
}

// AlreadyRegistered creates an already registered error
func AlreadyRegistered(message string) *Error {
	return New(CodeAlreadyRegistered, message)
}

// NoHandlers creates a no handlers error
func NoHandlers(message string) *Error {
	return New(CodeNoHandlers, message)
}

// InvalidEvent creates an invalid event error
func InvalidEvent(message string) *Error {
	return New(CodeInvalidEvent, message)
}

// HandlerFailed wraps a handler failure
func HandlerFailed(err error, message string) *Error {
	return WrapWithCode(err, CodeHandlerFailed, message)
}

// Internalf creates a formatted internal error
func Internalf(format string, args ...any) *Error {
	return Newf(CodeInternal, format, args...)
}

// Is checks if the error is of a specific code
func Is(err error, code Code) bool {
	var busErr *Error
	if errors.As(err, &busErr) {
		return busErr.Code == code
	}
	return false
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return Is(err, CodeInvalidArgument)
}

// IsConfiguration checks if the error is a configuration error
func IsConfiguration(err error) bool {
	return Is(err, CodeConfiguration)
}

// IsAlreadyRegistered checks if the error is an already registered error
func IsAlreadyRegistered(err error) bool {
	return Is(err, CodeAlreadyRegistered)
}

// IsNoHandlers checks if the error is a no handlers error
func IsNoHandlers(err error) bool {
	return Is(err, CodeNoHandlers)
}

// IsInvalidEvent checks if the error is an invalid event error
func IsInvalidEvent(err error) bool {
	return Is(err, CodeInvalidEvent)
}

// IsHandlerFailed checks if the error is a handler failure
func IsHandlerFailed(err error) bool {
	return Is(err, CodeHandlerFailed)
}

// GetCode returns the error code
func GetCode(err error) Code {
	var busErr *Error
	if errors.As(err, &busErr) {
		return busErr.Code
	}
	return CodeUnknown
}

// GetMeta returns the error metadata
func GetMeta(err error) map[string]any {
	var busErr *Error
	if errors.As(err, &busErr) {
		return busErr.Meta
	}
	return nil
}

// copyMeta creates a copy of the metadata map
func copyMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}

	copied := make(map[string]any, len(meta))
	for k, v := range meta {
		copied[k] = v
	}
	return copied
}
