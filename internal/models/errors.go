package models

import "errors"

var (
	// ErrUnsupportedFormat means the parser has no handler for the
	// declared file type. Permanent; fails that file only.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrCorruptInput means the parser could not extract content from a
	// format it does handle. Permanent.
	ErrCorruptInput = errors.New("corrupt input")

	// ErrEmbeddingUnavailable is a transient embedding backend failure,
	// retried with backoff before it becomes permanent.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrDimensionMismatch means the embedder returned vectors of a
	// different size than the index was built with. Fatal configuration
	// error; never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDuplicate signals that identical bytes already exist in the same
	// investigation scope. A normal outcome, not a failure.
	ErrDuplicate = errors.New("duplicate content")

	// ErrNotFound is returned for lookups or deletes of unknown ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidQuery rejects malformed search parameters before any
	// index access.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrInvalidChunking rejects a chunker configuration where the
	// overlap is not smaller than the chunk size.
	ErrInvalidChunking = errors.New("invalid chunking configuration")
)
