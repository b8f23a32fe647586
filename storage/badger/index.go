package badger

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
)

// Index implements storage.VectorIndex on BadgerDB with an exhaustive cosine scan.
// Distances are cosine distances (1 - cosine similarity), in [0, 2].
type Index struct {
	backend  *Backend
	meta     *MetaRepository
	ownsBack bool
}

var _ storage.VectorIndex = (*Index)(nil)

// newIndex is an internal constructor that returns the concrete type.
func newIndex(backend *Backend, ownsBackend bool) *Index {
	return &Index{
		backend:  backend,
		meta:     NewMetaRepository(backend),
		ownsBack: ownsBackend,
	}
}

// NewIndex opens (or creates) a persistent index in the directory at path.
//
// Returns storage.VectorIndex interface to enforce abstraction.
func NewIndex(path string) (storage.VectorIndex, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newIndex(backend, true), nil
}

// NewIndexWithBackend creates an index over an already opened backend.
// The caller keeps ownership of the backend.
func NewIndexWithBackend(backend *Backend) *Index {
	return newIndex(backend, false)
}

// Close closes the backend if the index opened it.
func (i *Index) Close() error {
	if i.ownsBack && !i.backend.IsClosed() {
		return i.backend.Close()
	}
	return nil
}

// AddDocuments stores documents and their partition index entries.
func (i *Index) AddDocuments(ctx context.Context, docs ...*core.IndexedDocument) error {
	if i.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return i.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := core.ValidateDocument(&doc.Document); err != nil {
				return err
			}
			value, err := storage.MarshalIndexedDocument(doc)
			if err != nil {
				return err
			}
			if err := tx.Set(makeDocumentKey(doc.Key), value); err != nil {
				return err
			}
			if err := tx.Set(makePartitionKey(doc.Document.SourceFile, doc.Key), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Clear removes all documents, partition entries and metadata.
func (i *Index) Clear(ctx context.Context) error {
	if i.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	i.backend.logger.Debug("clearing index")
	return i.backend.DropPrefix([]byte(documentPrefix), []byte(partitionPrefix), []byte(indexMetaKey))
}

// Query scans stored vectors and returns the limit closest documents.
func (i *Index) Query(ctx context.Context, vector []float32, limit int, partition string) ([]core.Candidate, error) {
	if i.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if limit <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	var candidates []core.Candidate
	consider := func(doc *core.IndexedDocument) error {
		if len(doc.Vector) == 0 {
			return nil
		}
		if len(doc.Vector) != len(vector) {
			return fmt.Errorf("%w: index holds %d, query has %d", storage.ErrDimensionMismatch, len(doc.Vector), len(vector))
		}
		candidates = append(candidates, core.Candidate{
			Key:      doc.Key,
			Document: doc.Document,
			Distance: cosineDistance(vector, doc.Vector),
		})
		return nil
	}

	err := i.backend.WithTx(func(tx *badger.Txn) error {
		if partition == "" {
			return scanDocuments(ctx, tx, consider)
		}
		return scanPartition(ctx, tx, partition, consider)
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(candidates, func(a, b core.Candidate) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// Count returns the number of stored documents.
func (i *Index) Count(ctx context.Context) (int, error) {
	if i.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	count := 0
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Partitions returns the distinct source files, sorted.
func (i *Index) Partitions(ctx context.Context) ([]string, error) {
	if i.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var partitions []string
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(partitionPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			partition, _, ok := splitPartitionKey(iter.Item().Key())
			if !ok {
				continue
			}
			// Keys are sorted, so duplicates are adjacent.
			if n := len(partitions); n == 0 || partitions[n-1] != partition {
				partitions = append(partitions, partition)
			}
		}
		return nil
	}, false)
	return partitions, err
}

// SaveMeta persists index metadata.
func (i *Index) SaveMeta(ctx context.Context, meta *storage.IndexMeta) error {
	return i.meta.SaveMeta(ctx, meta)
}

// LoadMeta returns stored index metadata, or nil, nil if absent.
func (i *Index) LoadMeta(ctx context.Context) (*storage.IndexMeta, error) {
	return i.meta.LoadMeta(ctx)
}

func scanDocuments(ctx context.Context, tx *badger.Txn, fn func(*core.IndexedDocument) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(documentPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := readDocument(iter.Item())
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func scanPartition(ctx context.Context, tx *badger.Txn, partition string, fn func(*core.IndexedDocument) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makePartialPartitionKey(partition)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, key, ok := splitPartitionKey(iter.Item().Key())
		if !ok {
			continue
		}
		item, err := tx.Get(makeDocumentKey(key))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				continue
			}
			return err
		}
		doc, err := readDocument(item)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func readDocument(item *badger.Item) (*core.IndexedDocument, error) {
	var doc *core.IndexedDocument
	err := item.Value(func(val []byte) error {
		var err error
		doc, err = storage.UnmarshalIndexedDocument(val)
		return err
	})
	return doc, err
}

// cosineDistance returns 1 - cos(a, b). Zero vectors are maximally distant.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
