package router

import (
	"errors"
	"fmt"
	"net/http"
)

// RedirectError is returned by a hook to send the navigation elsewhere.
// The navigation restarts at the target, replacing the current entry.
type RedirectError struct {
	// To is the target path, relative paths resolve against the
	// location being loaded.
	To string

	// Href is a full href, used instead of To when set. External hrefs
	// are only honored by server collaborators.
	Href string

	Params map[string]string
	Search map[string]any
	Hash   string

	// Push records a new history entry instead of replacing.
	Push bool

	// StatusCode is the HTTP status a server should use (default 307).
	StatusCode int
}

// Redirect returns a redirect to to.
func Redirect(to string) *RedirectError {
	return &RedirectError{To: to}
}

func (e *RedirectError) Error() string {
	target := e.Href
	if target == "" {
		target = e.To
	}
	return "redirect to " + target
}

// Code returns the HTTP status code for the redirect.
func (e *RedirectError) Code() int {
	if e.StatusCode == 0 {
		return http.StatusTemporaryRedirect
	}
	return e.StatusCode
}

// NotFoundError signals that the requested data or location does not exist.
type NotFoundError struct {
	// RouteID names the route whose not-found boundary should render the
	// error. Empty means the route that raised it.
	RouteID string

	// Global marks a pathname no route fully matched.
	Global bool

	Message string
	Data    any
}

// NotFound returns a not-found error for the raising route.
func NotFound() *NotFoundError {
	return &NotFoundError{}
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return "not found: " + e.Message
	}
	return "not found"
}

// IsRedirect reports whether err carries a redirect.
func IsRedirect(err error) (*RedirectError, bool) {
	var re *RedirectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsNotFound reports whether err carries a not-found.
func IsNotFound(err error) (*NotFoundError, bool) {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf, true
	}
	return nil, false
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRedirect
	OutcomeNotFound
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeNotFound:
		return "notFound"
	case OutcomeFailure:
		return "failure"
	default:
		return "success"
	}
}

// Outcome is the classified result of a hook.
type Outcome struct {
	Kind     OutcomeKind
	Data     any
	Redirect *RedirectError
	NotFound *NotFoundError
	Err      error
}

// Classify turns a hook result into an Outcome.
func Classify(data any, err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeSuccess, Data: data}
	}
	if re, ok := IsRedirect(err); ok {
		return Outcome{Kind: OutcomeRedirect, Redirect: re, Err: err}
	}
	if nf, ok := IsNotFound(err); ok {
		return Outcome{Kind: OutcomeNotFound, NotFound: nf, Err: err}
	}
	return Outcome{Kind: OutcomeFailure, Err: err}
}

// LoadErrorCode names the phase a match failed in.
type LoadErrorCode string

const (
	CodeParseParams    LoadErrorCode = "PARSE_PARAMS"
	CodeValidateSearch LoadErrorCode = "VALIDATE_SEARCH"
	CodeBeforeLoad     LoadErrorCode = "BEFORE_LOAD"
	CodeLoader         LoadErrorCode = "LOADER"
)

// LoadError wraps a failure stored on a match.
type LoadError struct {
	Code    LoadErrorCode
	RouteID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Code, e.RouteID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered panic from a hook.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// safeCall runs fn, turning a panic into a *PanicError.
func safeCall[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if v := recover(); v != nil {
			if e, ok := v.(error); ok {
				if _, isRedirect := IsRedirect(e); isRedirect {
					err = e
					return
				}
				if _, isNotFound := IsNotFound(e); isNotFound {
					err = e
					return
				}
			}
			err = &PanicError{Value: v}
		}
	}()
	return fn()
}
