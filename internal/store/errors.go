package store

import (
	"errors"
	"fmt"
)

// ErrStorageWrite marks a failed persistence write. It is non-fatal: the
// in-memory cart stays valid but may not survive a refresh.
var ErrStorageWrite = errors.New("storage write failed")

// WriteError carries the key that failed to persist.
type WriteError struct {
	Key Key
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageWrite, e.Key, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrStorageWrite, e.Err}
}
