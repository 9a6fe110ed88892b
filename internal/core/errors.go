package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// UpstreamRequest is an opaque request descriptor built by stage logic.
type UpstreamRequest struct {
	URL string
	// Label names the endpoint for logs and metrics without leaking ids.
	Label string
}

// UpstreamResponse is a successful upstream reply.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// TransportError reports that the upstream could not be reached.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("upstream transport: %v", e.Err)
	}
	return fmt.Sprintf("upstream transport (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError reports a non-success upstream status.
type StatusError struct {
	StatusCode int
	Label      string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d (%s)", e.StatusCode, e.Label)
}

// StatusCodeOf returns the upstream status carried by err, or 0.
func StatusCodeOf(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return StatusCodeOf(err) == http.StatusNotFound
}

// IsRateLimited reports whether err is an upstream 429.
func IsRateLimited(err error) bool {
	return StatusCodeOf(err) == http.StatusTooManyRequests
}

// IsTransient reports whether a fresh attempt of the same call may succeed.
func IsTransient(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	code := StatusCodeOf(err)
	return code == http.StatusTooManyRequests || code >= 500
}

// StageError is a classified stage outcome.
type StageError struct {
	Stage   Stage
	Message string
	Hard    bool
	Err     error
}

func (e *StageError) Error() string {
	kind := "soft"
	if e.Hard {
		kind = "hard"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failure in %s: %s", kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s failure in %s: %s: %v", kind, e.Stage, e.Message, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// SoftFailure marks a stage's data unavailable without stopping the pipeline.
func SoftFailure(stage Stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Err: err}
}

// HardFailure marks the session as no longer able to produce stages.
func HardFailure(stage Stage, message string, err error) *StageError {
	return &StageError{Stage: stage, Message: message, Hard: true, Err: err}
}

// IsHardFailure reports whether err carries a hard stage failure.
func IsHardFailure(err error) bool {
	var stageErr *StageError
	return errors.As(err, &stageErr) && stageErr.Hard
}

// StoreError wraps a relational store failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
