package document

import (
	"errors"
	"fmt"
)

var (
	// ErrMutationFailed tags every failure returned by Apply.
	ErrMutationFailed = errors.New("document: mutation failed")
	// ErrInvalidValue marks a mutation rejected by schema validation.
	ErrInvalidValue = errors.New("document: invalid value")
)

// MutationError reports the path segment that could not be resolved or
// written.
type MutationError struct {
	Path    string
	Segment string
	Reason  string
	Err     error
}

func (e *MutationError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("document: mutation failed for %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("document: mutation failed for %q at segment %q: %s", e.Path, e.Segment, e.Reason)
}

// Unwrap exposes ErrMutationFailed and the optional cause to errors.Is.
func (e *MutationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMutationFailed, e.Err}
	}
	return []error{ErrMutationFailed}
}

func mutationErr(path, segment, format string, args ...any) *MutationError {
	return &MutationError{Path: path, Segment: segment, Reason: fmt.Sprintf(format, args...)}
}
