package transform

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials indicates the client was constructed without an API
// key or secret and cannot sign requests.
var ErrMissingCredentials = errors.New("transform: missing api credentials")

// BackendError reports a terminal failure from the transformation backend.
// Callers treat it as non-retryable for the attempt; any retry is a fresh
// upload initiated by the user.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("transform backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("transform backend returned status %d: %s", e.StatusCode, e.Message)
}
