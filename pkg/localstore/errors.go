// Package localstore provides the client-side draft storage backends.
package localstore

import (
	"errors"
	"fmt"
)

// Standard storage error types shared by all backends.
var (
	// ErrDraftNotFound indicates no draft exists for the given form id.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrNoDrafts indicates the store holds no drafts at all.
	ErrNoDrafts = errors.New("no drafts saved")

	// ErrIndexCorrupt indicates the draft index could not be parsed.
	ErrIndexCorrupt = errors.New("draft index corrupt")
)

// DraftError wraps draft storage failures with operation context.
type DraftError struct {
	Op     string // Operation being performed (e.g. "Save", "Get", "Delete")
	FormID string // Form id if applicable
	Err    error  // Underlying error
}

func (e *DraftError) Error() string {
	if e.FormID == "" {
		return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s operation failed for draft %s: %v", e.Op, e.FormID, e.Err)
}

func (e *DraftError) Unwrap() error {
	return e.Err
}

func (e *DraftError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDraftError creates a draft storage error with context.
func NewDraftError(op, formID string, err error) *DraftError {
	return &DraftError{Op: op, FormID: formID, Err: err}
}

// IsDraftNotFound checks if an error indicates a missing draft.
func IsDraftNotFound(err error) bool {
	return errors.Is(err, ErrDraftNotFound)
}

// IsNoDrafts checks if an error indicates an empty store.
func IsNoDrafts(err error) bool {
	return errors.Is(err, ErrNoDrafts)
}
