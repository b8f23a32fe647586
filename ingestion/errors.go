package ingestion

import "errors"

var (
	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrDataDirNotFound is returned when the data directory does not exist.
	ErrDataDirNotFound = errors.New("data directory not found")

	// ErrNoCSVFiles is returned when the data directory holds no CSV file.
	ErrNoCSVFiles = errors.New("no CSV files found")

	// ErrInvalidMaxAttempts is returned when maxAttempts is zero or negative.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be positive")

	// ErrEmbeddingMismatch is returned when an embedder returns the wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
