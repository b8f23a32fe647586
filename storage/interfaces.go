package storage

import (
	"context"
	"time"

	"github.com/poiesic/adala/core"
)

// CollectionName names the indexed legal corpus in statistics.
const CollectionName = "legal_documents"

// IndexMeta records how the vectors of an index were produced.
type IndexMeta struct {
	EmbeddingModel string    `json:"embedding_model"`
	EmbeddingDim   int       `json:"embedding_dim"`
	Degraded       bool      `json:"degraded"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// VectorIndex stores embedded documents and answers nearest-neighbor queries.
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	// AddDocuments stores documents, replacing any existing document with the same key.
	AddDocuments(ctx context.Context, docs ...*core.IndexedDocument) error

	// Clear removes every document and the index metadata.
	Clear(ctx context.Context) error

	// Query returns up to limit documents nearest to vector, closest first.
	// When partition is non-empty only documents whose SourceFile equals it
	// are considered, and the filter is applied before the limit.
	Query(ctx context.Context, vector []float32, limit int, partition string) ([]core.Candidate, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Partitions returns the distinct source files present, sorted.
	Partitions(ctx context.Context) ([]string, error)

	// SaveMeta persists index metadata.
	SaveMeta(ctx context.Context, meta *IndexMeta) error

	// LoadMeta returns the stored index metadata, or nil, nil if none exists.
	LoadMeta(ctx context.Context) (*IndexMeta, error)

	// Close releases the index.
	Close() error
}

// HistoryStore persists the conversation log as a whole.
// The log is small and bounded, so it is always read and written in full.
type HistoryStore interface {
	// Load returns the stored entries, oldest first.
	// A store that was never written returns an empty slice and no error.
	Load(ctx context.Context) ([]core.HistoryEntry, error)

	// Save replaces the stored log with entries.
	Save(ctx context.Context, entries []core.HistoryEntry) error

	// Close releases the store.
	Close() error
}
