package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared across the service. Storage and API layers wrap
// these with context and match them with errors.Is.
var (
	// ErrNotFound marks a lookup for an id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation, e.g. a second active
	// monitor for a group.
	ErrConflict = errors.New("conflict")

	// ErrValidation marks malformed input rejected at the boundary.
	ErrValidation = errors.New("validation failed")
)

// UpstreamError wraps a failure from an external collaborator (feed, LLM
// provider, SEC EDGAR). The status code is kept so callers can distinguish
// bad credentials from a transient failure before deciding to retry by
// hand; nothing retries automatically.
type UpstreamError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the upstream rejected our credentials.
func (e *UpstreamError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}
