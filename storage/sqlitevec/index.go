// Package sqlitevec provides a storage.VectorIndex backed by SQLite and the
// sqlite-vec extension. Distances are the L2 distances computed by vec0.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3" // Import sqlite3 driver
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
)

func init() {
	sqlite_vec.Auto()
}

const (
	initialMultiplier = 2
	growthFactor      = 2.0
	maxAttempts       = 10
)

var dimPattern = regexp.MustCompile(`FLOAT\[(\d+)\]`)

// Index implements storage.VectorIndex with a vec0 virtual table.
type Index struct {
	db     *sql.DB
	logger *slog.Logger

	mu  sync.Mutex
	dim int // 0 until the vector table exists
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex opens (or creates) an index in the SQLite database at dsn.
// Use ":memory:" for a throwaway index.
//
// Returns storage.VectorIndex interface to enforce abstraction.
func NewIndex(dsn string) (storage.VectorIndex, error) {
	return newIndex(dsn)
}

func newIndex(dsn string) (*Index, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	idx := &Index{
		db:     db,
		logger: slog.Default().With("component", "sqlitevec-index"),
	}
	if err := idx.initDB(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return idx, nil
}

// initDB creates the metadata tables. vec_documents is created on first
// insert, once the embedding dimension is known.
func (s *Index) initDB() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source_file TEXT NOT NULL,
			document TEXT NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_source_file ON documents(source_file)`,
		`CREATE TABLE IF NOT EXISTS index_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}

	// Recover the dimension of an existing vector table from its definition.
	var ddl string
	err := s.db.QueryRow(`SELECT sql FROM sqlite_master WHERE name = 'vec_documents'`).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if m := dimPattern.FindStringSubmatch(ddl); m != nil {
		s.dim, _ = strconv.Atoi(m[1])
	}
	return nil
}

// Close closes the database connection.
func (s *Index) Close() error {
	return s.db.Close()
}

// ensureVecTable creates vec_documents for dim-sized vectors if needed.
func (s *Index) ensureVecTable(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == dim {
		return nil
	}
	if s.dim != 0 {
		return fmt.Errorf("%w: index holds %d, document has %d", storage.ErrDimensionMismatch, s.dim, dim)
	}

	query := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
		id TEXT PRIMARY KEY,
		embedding FLOAT[%d]
	)`, dim)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create vec_documents table: %w", err)
	}
	s.dim = dim
	return nil
}

func (s *Index) dimension() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

// AddDocuments upserts documents and their vectors in one transaction.
func (s *Index) AddDocuments(ctx context.Context, docs ...*core.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if err := core.ValidateDocument(&doc.Document); err != nil {
			return err
		}
	}
	if err := s.ensureVecTable(ctx, len(docs[0].Vector)); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, doc := range docs {
		if len(doc.Vector) != s.dimension() {
			return fmt.Errorf("%w: index holds %d, document has %d", storage.ErrDimensionMismatch, s.dimension(), len(doc.Vector))
		}
		body, err := json.Marshal(doc.Document)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, source_file, document, text)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				source_file = excluded.source_file,
				document = excluded.document,
				text = excluded.text`,
			doc.Key, doc.Document.SourceFile, string(body), doc.Text); err != nil {
			return fmt.Errorf("failed to upsert document: %w", err)
		}
		// vec0 doesn't support UPDATE
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_documents WHERE id = ?`, doc.Key); err != nil {
			return fmt.Errorf("failed to delete old vector: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vec_documents (id, embedding) VALUES (?, ?)`,
			doc.Key, storage.EncodeVector(doc.Vector)); err != nil {
			return fmt.Errorf("failed to insert document vector: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Clear drops every document, the vector table and the metadata.
func (s *Index) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range []string{
		`DELETE FROM documents`,
		`DELETE FROM index_meta`,
		`DROP TABLE IF EXISTS vec_documents`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	s.dim = 0
	return nil
}

// Query runs a KNN search. With a partition it grows the candidate pool until
// limit matching documents are found or the index is exhausted.
func (s *Index) Query(ctx context.Context, vector []float32, limit int, partition string) ([]core.Candidate, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}
	dim := s.dimension()
	if dim == 0 {
		return []core.Candidate{}, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: index holds %d, query has %d", storage.ErrDimensionMismatch, dim, len(vector))
	}

	if partition == "" {
		return s.knn(ctx, vector, limit)
	}

	multiplier := initialMultiplier
	for attempt := 0; ; attempt++ {
		candidateCount := limit * multiplier
		candidates, err := s.knn(ctx, vector, candidateCount)
		if err != nil {
			return nil, err
		}

		filtered := make([]core.Candidate, 0, limit)
		for _, c := range candidates {
			if c.Document.SourceFile == partition {
				filtered = append(filtered, c)
				if len(filtered) >= limit {
					break
				}
			}
		}

		if len(filtered) >= limit || len(candidates) < candidateCount || attempt+1 >= maxAttempts {
			return filtered, nil
		}

		multiplier = int(float64(multiplier) * growthFactor)
		s.logger.Debug("growing candidate pool",
			"partition", partition,
			"found", len(filtered),
			"wanted", limit,
			"next", limit*multiplier,
			"attempt", attempt+1)
	}
}

func (s *Index) knn(ctx context.Context, vector []float32, k int) ([]core.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.document, v.distance
		FROM vec_documents v
		JOIN documents d ON d.id = v.id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`,
		storage.EncodeVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to perform vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []core.Candidate
	for rows.Next() {
		var (
			id, body string
			distance float64
		)
		if err := rows.Scan(&id, &body, &distance); err != nil {
			return nil, err
		}
		var doc core.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			s.logger.Warn("skipping undecodable document", "id", id, "err", err)
			continue
		}
		results = append(results, core.Candidate{Key: id, Document: doc, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}

// Count returns the number of stored documents.
func (s *Index) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Partitions returns the distinct source files, sorted.
func (s *Index) Partitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source_file FROM documents ORDER BY source_file`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var partitions []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		partitions = append(partitions, p)
	}
	return partitions, rows.Err()
}

// SaveMeta persists index metadata.
func (s *Index) SaveMeta(ctx context.Context, meta *storage.IndexMeta) error {
	meta.UpdatedAt = time.Now().UTC()
	value, err := storage.MarshalIndexMeta(meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO index_meta (id, value) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value`, string(value))
	return err
}

// LoadMeta returns stored index metadata, or nil, nil if absent.
func (s *Index) LoadMeta(ctx context.Context) (*storage.IndexMeta, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE id = 1`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalIndexMeta([]byte(value))
}
