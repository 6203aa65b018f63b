package domain

import "errors"

// Sentinel errors classifying pipeline failures. Per-item failures
// (ErrNotFound, ErrExtraction, ErrProvider) are counted and skipped;
// only ErrConfig aborts a run.
var (
	// ErrNotFound: the source document does not exist at its derived
	// URL, or the submission family has no URL scheme at all.
	ErrNotFound = errors.New("document not found")

	// ErrExtraction: the local document could not be read or yielded
	// no usable text. The next run's integrity scan re-flags it.
	ErrExtraction = errors.New("extraction failed")

	// ErrProvider: an embedding provider call failed for one chunk.
	ErrProvider = errors.New("embedding provider failure")

	// ErrConfig: invalid parameters (chunk geometry, missing paths).
	// Raised before any I/O and fatal to the whole run.
	ErrConfig = errors.New("invalid configuration")
)
