package transcode

import (
	"context"
	"errors"
	"fmt"

	"github.com/amankumarsingh77/hls-transcoder/internal/models"
)

// Stage names the step of a run that failed.
type Stage string

const (
	StageInitialize Stage = "initialize"
	StageEncode     Stage = "encode"
	StageManifest   Stage = "manifest"
)

// ConfigurationError means the output directory could not be prepared.
type ConfigurationError struct {
	OutputDirectory string
	Err             error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("prepare output directory %s: %v", e.OutputDirectory, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Stage() Stage { return StageInitialize }

// EncodeError is returned for a rendition whose encoder exited non-zero,
// could not be launched, or was cancelled. Diagnostic holds the encoder's
// captured stderr verbatim.
type EncodeError struct {
	Profile    models.RenditionProfile
	ExitCode   int
	Diagnostic string
	Cancelled  bool
	Err        error
}

func (e *EncodeError) Error() string {
	switch {
	case e.Cancelled:
		return fmt.Sprintf("encode %s cancelled: %v", e.Profile.Label, e.Err)
	case e.ExitCode > 0:
		return fmt.Sprintf("encode %s: encoder exited with status %d: %s", e.Profile.Label, e.ExitCode, e.Diagnostic)
	case e.Diagnostic != "":
		return fmt.Sprintf("encode %s: %v: %s", e.Profile.Label, e.Err, e.Diagnostic)
	default:
		return fmt.Sprintf("encode %s: %v", e.Profile.Label, e.Err)
	}
}

func (e *EncodeError) Unwrap() error { return e.Err }

func (e *EncodeError) Stage() Stage { return StageEncode }

// ManifestWriteError means every rendition succeeded but the master
// manifest could not be published. The run is still a failure.
type ManifestWriteError struct {
	Path string
	Err  error
}

func (e *ManifestWriteError) Error() string {
	return fmt.Sprintf("write manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestWriteError) Unwrap() error { return e.Err }

func (e *ManifestWriteError) Stage() Stage { return StageManifest }

// StageOf reports the stage carried by err, or "" for foreign errors.
func StageOf(err error) Stage {
	var staged interface{ Stage() Stage }
	if errors.As(err, &staged) {
		return staged.Stage()
	}
	return ""
}

// Diagnostic returns the operator-facing detail of err.
func Diagnostic(err error) string {
	var encErr *EncodeError
	if errors.As(err, &encErr) && encErr.Diagnostic != "" {
		return encErr.Diagnostic
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsCancelled reports whether err came from a cancelled or timed out encode.
func IsCancelled(err error) bool {
	var encErr *EncodeError
	if errors.As(err, &encErr) && encErr.Cancelled {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
