package stash

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNamingExhausted is returned when an archive filename could not be
	// chosen after the bounded number of collision retries.
	ErrNamingExhausted = errors.New("stash: archive naming exhausted")

	// ErrMissingExec is returned when Run is asked to execute an Operation
	// with no Exec callable.
	ErrMissingExec = errors.New("stash: operation has no exec callable")

	// ErrNotCached is returned by Restore when no matching cache entry
	// exists.
	ErrNotCached = errors.New("stash: operation is not cached")
)

// FingerprintError reports that a declared input could not be fingerprinted,
// typically because the path does not exist or is unreadable. It is surfaced
// to the caller and never retried.
type FingerprintError struct {
	// Path is the declared input that failed.
	Path string

	// Cause is the underlying error.
	Cause error
}

func (e *FingerprintError) Error() string {
	return fmt.Sprintf("stash: fingerprint input %q: %v", e.Path, e.Cause)
}

func (e *FingerprintError) Unwrap() error {
	return e.Cause
}

// ArchiveError reports a failed archive write or extraction. Extraction
// failures are fatal to the restore that triggered them: a partial
// extraction leaves workspace state ambiguous and is not rolled back.
type ArchiveError struct {
	// Op is "write" or "extract".
	Op string

	// Path is the archive file involved.
	Path string

	// Cause is the underlying error.
	Cause error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("stash: archive %s %q: %v", e.Op, e.Path, e.Cause)
}

func (e *ArchiveError) Unwrap() error {
	return e.Cause
}
