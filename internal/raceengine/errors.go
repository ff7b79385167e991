package raceengine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientSample is returned by statistical operations which do
	// not have enough data points to produce a result. It is never
	// approximated away.
	ErrInsufficientSample = errors.New("strategyd: insufficient sample")

	// ErrModelNotFound is returned when no artifact exists in the model
	// cache for a requested circuit and compound.
	ErrModelNotFound = errors.New("strategyd: model not found")

	// ErrInvalidRequest is returned when caller-supplied parameters violate
	// preconditions. It is detected before any computation starts.
	ErrInvalidRequest = errors.New("strategyd: invalid request")
)

// MalformedRecordError describes a raw lap row which failed validation.
// Rejected rows are reported, never silently dropped.
type MalformedRecordError struct {
	Index   int
	Missing []string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("strategyd: malformed record at index %d, missing fields: %s", e.Index, strings.Join(e.Missing, ", "))
}

// StartupArtifactLoadError is fatal. A process which cannot load a required
// artifact must refuse to serve predictions rather than serve silently
// degraded ones.
type StartupArtifactLoadError struct {
	Artifact string
	Err      error
}

func (e *StartupArtifactLoadError) Error() string {
	return fmt.Sprintf("strategyd: could not load required artifact %q: %s", e.Artifact, e.Err)
}

func (e *StartupArtifactLoadError) Unwrap() error {
	return e.Err
}
