package media

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates no authenticated user marker reached the upload
// boundary. It is terminal and never results in backend traffic.
var ErrUnauthorized = errors.New("media: unauthorized")

// ValidationError reports an upload rejected before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "media: validation failed: " + e.Reason
}

// PersistenceError reports a metadata write failure that occurred after the
// transformation backend already accepted the asset. The upload is surfaced
// as failed; compensation for the orphaned remote asset runs asynchronously.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("media: persist asset: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
