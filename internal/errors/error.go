package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryRuntime  Category = "runtime"
	CategoryConfig   Category = "config"
	CategoryTree     Category = "tree"
	CategoryManifest Category = "manifest"
	CategoryCLI      Category = "cli"
)

// RouterError is a structured error with a registry code, detail and suggestion.
type RouterError struct {
	// Code is a unique error identifier (e.g., "R201").
	Code string

	// Category is the error type.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a RouterError with the same code.
func (e *RouterError) Is(target error) bool {
	t, ok := target.(*RouterError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithSuggestion adds a fix suggestion to the error.
func (e *RouterError) WithSuggestion(s string) *RouterError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *RouterError) WithDetail(d string) *RouterError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detail to the error.
func (e *RouterError) WithDetailf(format string, args ...any) *RouterError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *RouterError) Wrap(err error) *RouterError {
	e.Wrapped = err
	return e
}

// New creates a RouterError from a registered error code.
func New(code string) *RouterError {
	template, ok := registry[code]
	if !ok {
		return &RouterError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &RouterError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new RouterError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *RouterError {
	return &RouterError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a RouterError.
func FromError(err error, code string) *RouterError {
	if err == nil {
		return nil
	}
	if re, ok := As(err); ok {
		return re
	}
	return New(code).Wrap(err)
}

// As finds the first RouterError in err's chain.
func As(err error) (*RouterError, bool) {
	var re *RouterError
	if stderrors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// HasCode reports whether err's chain contains a RouterError with code.
func HasCode(err error, code string) bool {
	re, ok := As(err)
	return ok && re.Code == code
}
