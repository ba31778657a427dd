package extract

import "errors"

var (
	// ErrInProgress is returned by Extract when a job for the same archive
	// name is already running (§4.4 "single-flight invariant", S5).
	ErrInProgress = errors.New("extract: extraction already in progress")
	// ErrAlreadyExists is returned by Extract when overwrite=false and the
	// destination directory already exists.
	ErrAlreadyExists = errors.New("extract: destination directory already exists")
	// ErrArchiveNotFound is returned when the named archive has no indexed
	// node (it was never downloaded, or was downloaded without a sidecar).
	ErrArchiveNotFound = errors.New("extract: archive not indexed")
	// ErrNotFound is returned by Cancel when no job is running for the
	// given archive name.
	ErrNotFound = errors.New("extract: no extraction in progress")
)
