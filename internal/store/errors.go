package store

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage rejects blank text before any repository or network
	// activity — an empty send must never leave the process.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrNotAuthenticated is the write gate: appends require an
	// authenticated author identity.
	ErrNotAuthenticated = errors.New("append requires an authenticated session")
)

// WriteError wraps a repository failure on append (connectivity loss,
// permission denied). The caller surfaces it or retries; the store itself
// does not retry.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write message: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
