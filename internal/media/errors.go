package media

import (
	"errors"
	"fmt"
)

// ErrInvalidSource rejects an upload whose source can't be read at all
// (missing filename, nil reader). No blob is created.
var ErrInvalidSource = errors.New("invalid upload source")

// UploadError wraps a transfer failure. An upload that fails this way has
// produced no retrievable blob and must never feed a message append.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload: %v", e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
