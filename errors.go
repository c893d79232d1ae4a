package erfs

import "errors"

// Sentinel errors.
var (
	// ErrInvalidInput is returned when a required argument is missing or a
	// handle does not belong to the filesystem.
	ErrInvalidInput = errors.New("erfs: invalid input")

	// ErrNotFound is returned when a path segment has no matching entry.
	ErrNotFound = errors.New("erfs: not found")

	// ErrNotFile is returned when a file operation is applied to a directory.
	ErrNotFile = errors.New("erfs: not a file")

	// ErrNotDirectory is returned when a directory operation is applied to a file.
	ErrNotDirectory = errors.New("erfs: not a directory")

	// ErrOutOfBound is returned when a directory index exceeds its child count.
	ErrOutOfBound = errors.New("erfs: index out of bound")

	// ErrCorrupt is returned when an artifact violates the format invariants.
	ErrCorrupt = errors.New("erfs: corrupt artifact")

	// ErrDecompression is returned when gzipped content cannot be decompressed.
	ErrDecompression = errors.New("erfs: decompression failed")

	// ErrDigestMismatch is returned by Verify when content does not match the manifest.
	ErrDigestMismatch = errors.New("erfs: digest mismatch")
)
