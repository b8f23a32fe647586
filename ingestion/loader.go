// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/adala/core"
	"golang.org/x/text/encoding/charmap"
)

// contentColumns are tried in order for the passage text of a row.
var contentColumns = []string{"contenu", "content", "texte", "text", "article", "body"}

// minFallbackContent is the length a cell must exceed to serve as content
// when no content column is present.
const minFallbackContent = 3

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Corpus is the result of loading a data directory.
type Corpus struct {
	Documents []core.Document
	Files     []string // base names of the files read, sorted
}

// Stats summarizes the corpus.
func (c *Corpus) Stats() core.CorpusStats {
	if c == nil || len(c.Documents) == 0 {
		return core.CorpusStats{}
	}

	files := map[string]struct{}{}
	docTypes := map[string]struct{}{}
	stats := core.CorpusStats{TotalDocuments: len(c.Documents)}
	for _, doc := range c.Documents {
		files[doc.SourceFile] = struct{}{}
		if doc.Doc != "" {
			docTypes[doc.Doc] = struct{}{}
		}
		if doc.Article != "" {
			stats.DocumentsWithArticles++
		}
		if doc.Chapter != "" {
			stats.DocumentsWithChapters++
		}
	}
	stats.SourceFiles = len(files)
	stats.DocTypes = len(docTypes)
	return stats
}

// BySource returns the documents read from the named file.
func (c *Corpus) BySource(sourceFile string) []core.Document {
	return c.filter(func(doc core.Document) bool { return doc.SourceFile == sourceFile })
}

// ByDocType returns the documents whose doc column equals docType.
func (c *Corpus) ByDocType(docType string) []core.Document {
	return c.filter(func(doc core.Document) bool { return doc.Doc == docType })
}

func (c *Corpus) filter(keep func(core.Document) bool) []core.Document {
	if c == nil {
		return nil
	}
	var docs []core.Document
	for _, doc := range c.Documents {
		if keep(doc) {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Loader reads legal passages from the CSV files of a directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a loader for dir. A nil logger selects slog.Default().
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger.With("component", "loader")}
}

// Dir returns the data directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Files lists the CSV files of the data directory, sorted by name.
func (l *Loader) Files() ([]string, error) {
	info, err := os.Stat(l.dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrDataDirNotFound, l.dir)
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCSVFiles, l.dir)
	}
	slices.Sort(files)
	return files, nil
}

// LoadAll reads every CSV file of the data directory. A file that cannot be
// read is logged and skipped. LoadAll may be called repeatedly.
func (l *Loader) LoadAll(ctx context.Context) (*Corpus, error) {
	files, err := l.Files()
	if err != nil {
		return nil, err
	}
	l.logger.Info("loading corpus", "dir", l.dir, "files", len(files))

	corpus := &Corpus{Documents: []core.Document{}}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		docs, err := LoadFile(path)
		if err != nil {
			l.logger.Error("error reading CSV file, skipping it", "file", filepath.Base(path), "err", err)
			continue
		}
		corpus.Documents = append(corpus.Documents, docs...)
		corpus.Files = append(corpus.Files, filepath.Base(path))
		l.logger.Info("CSV file loaded", "file", filepath.Base(path), "documents", len(docs))
	}

	l.logger.Info("corpus loaded", "documents", len(corpus.Documents))
	return corpus, nil
}

// LoadFile reads the passages of one CSV file. The file is decoded as UTF-8,
// or as Latin-1 when it is not valid UTF-8. Header names are trimmed and
// lower-cased; rows without content are skipped.
func LoadFile(path string) ([]core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err = decodeText(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []core.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	sourceFile := filepath.Base(path)
	docs := []core.Document{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", sourceFile, err)
		}

		row := newRow(header, record)
		content := row.content()
		if content == "" {
			continue
		}

		docs = append(docs, core.Document{
			Doc:        row.get("doc"),
			Title:      row.get("titre"),
			Chapter:    row.get("chapitre"),
			Section:    row.get("section"),
			Article:    row.get("article"),
			Content:    content,
			Pages:      row.get("pages"),
			Index:      row.get("index"),
			SourceFile: sourceFile,
		})
	}
	return docs, nil
}

func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding latin-1: %w", err)
	}
	return decoded, nil
}

// row is one CSV record keyed by normalized header names.
type row struct {
	values map[string]string
	cells  []string
}

func newRow(header, record []string) row {
	r := row{values: make(map[string]string, len(header)), cells: record}
	for i, name := range header {
		if i >= len(record) {
			break
		}
		if _, seen := r.values[name]; !seen {
			r.values[name] = strings.TrimSpace(record[i])
		}
	}
	return r
}

func (r row) get(name string) string {
	return r.values[name]
}

// content returns the passage text of the row: the first non-empty content
// column, otherwise the first cell longer than minFallbackContent.
func (r row) content() string {
	for _, name := range contentColumns {
		if v := r.values[name]; v != "" {
			return v
		}
	}
	for _, cell := range r.cells {
		if v := strings.TrimSpace(cell); utf8.RuneCountInString(v) > minFallbackContent {
			return v
		}
	}
	return ""
}
