// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrBrowserNotFound = errors.New("chrome browser not found")
	ErrTimeout         = errors.New("request timeout")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrEmptyPage       = errors.New("page produced no markup")
)

// FetchError reports a failed direct network fetch: transport error, timeout,
// or non-success status.
type FetchError struct {
	URL        string
	StatusCode int
	Underlying error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error { return e.Underlying }

// GetStatusCode reports the HTTP status, for retry classification.
func (e *FetchError) GetStatusCode() int { return e.StatusCode }

// NewFetchError creates a FetchError for a transport-level failure.
func NewFetchError(url string, err error) *FetchError {
	return &FetchError{URL: url, Underlying: err}
}

// NewStatusError creates a FetchError for a non-success HTTP status.
func NewStatusError(url string, status int) *FetchError {
	return &FetchError{URL: url, StatusCode: status}
}

// RenderError reports a failure inside the rendering driver: navigation error
// or a wait-selector timeout. It aborts only the page it occurred on.
type RenderError struct {
	URL        string
	Stage      string // "navigate", "wait", "click", "scroll", "markup"
	Underlying error
}

// Error implements the error interface
func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s (%s): %v", e.URL, e.Stage, e.Underlying)
}

// Unwrap returns the underlying error
func (e *RenderError) Unwrap() error { return e.Underlying }

// NewRenderError creates a new RenderError
func NewRenderError(url, stage string, err error) *RenderError {
	return &RenderError{URL: url, Stage: stage, Underlying: err}
}
