// Package apperrors defines the error taxonomy shared by the handlers,
// the registry and the external-service clients. Handlers map each kind
// onto exactly one HTTP status so callers can distinguish "fix your
// request" from "retry later".
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError rejects a request before any write happens. Field names
// the offending input so the caller can surface it directly.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for a single field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError marks an unknown materialId or faultId.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError for the given entity kind and id.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ConcurrentUpdateError means the optimistic write lost the race after the
// bounded retry budget. The caller may safely resubmit.
type ConcurrentUpdateError struct {
	MaterialID string
	Attempts   int
}

func (e *ConcurrentUpdateError) Error() string {
	return fmt.Sprintf("material %q: concurrent update after %d attempts", e.MaterialID, e.Attempts)
}

// UpstreamError wraps a failure from the Inference Service or the Blob
// Store. Timeout upstream failures are retryable; the material document is
// never partially written when one occurs.
type UpstreamError struct {
	Service string
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timeout: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as a non-timeout upstream failure.
func Upstream(service string, err error) error {
	return &UpstreamError{Service: service, Err: err}
}

// UpstreamTimeout wraps err as a retryable upstream timeout.
func UpstreamTimeout(service string, err error) error {
	return &UpstreamError{Service: service, Timeout: true, Err: err}
}

// HTTPStatus maps an error onto its response code. Unknown errors are
// internal server errors.
func HTTPStatus(err error) int {
	var ve *ValidationError
	var nf *NotFoundError
	var cu *ConcurrentUpdateError
	var ue *UpstreamError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &cu):
		return http.StatusConflict
	case errors.As(err, &ue):
		if ue.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
