package videofiles

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("file type not allowed")
	ErrEmptyUpload       = errors.New("no selected file")
	ErrNotFound          = errors.New("not found")
	ErrBusy              = errors.New("another upload with the same name is being processed")
	ErrQueueUnavailable  = errors.New("job queue unavailable")
)

// PersistenceError means transcoding succeeded and media is on disk, but the
// catalog entry could not be written.
type PersistenceError struct {
	ManifestPath string
	Err          error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("record catalog entry for %s: %v", e.ManifestPath, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PublishError means the finished HLS tree could not be mirrored to object storage.
type PublishError struct {
	Prefix string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Prefix, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
