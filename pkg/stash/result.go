package stash

import "time"

// Result is one persisted cache entry, the metadata store's unit of record.
//
// A Result is owned by the store once inserted; callers only ever hold
// copies. The zero Expires time means the entry never expires.
type Result struct {
	// ID is assigned by the store on insert and stable for the record's
	// lifetime.
	ID int64 `json:"id"`

	// Action, InputFingerprint, and OutputFingerprint form the lookup key.
	Action            string `json:"action"`
	InputFingerprint  string `json:"input_fingerprint"`
	OutputFingerprint string `json:"output_fingerprint"`

	// ArchiveFile is the archive blob's name relative to the workspace
	// directory, unique within the workspace at creation time.
	ArchiveFile string `json:"archive_file"`

	// FileSize is the stored archive's size in bytes, assigned after the
	// archive write completes. Zero when the size could not be determined.
	FileSize int64 `json:"file_size"`

	// Runtime is how long the original operation took to execute.
	Runtime time.Duration `json:"runtime"`

	// Created is when the entry was stored.
	Created time.Time `json:"created"`

	// Expires is the absolute expiry time; zero means never.
	Expires time.Time `json:"expires,omitzero"`

	// Compressed reports whether the archive is gzip-wrapped.
	Compressed bool `json:"compressed"`
}

// Expired reports whether the entry's expiry has passed at now.
func (r Result) Expired(now time.Time) bool {
	return !r.Expires.IsZero() && !r.Expires.After(now)
}
