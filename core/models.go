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

package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-crypt/x/blake2b"
)

// DefaultContextLimit is the number of passages used for an answer when the
// caller does not ask for a specific amount.
const DefaultContextLimit = 5

// ID is a content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// DocumentKey derives the storage key of a document from its source file, its
// position in that file and a hash of its body. Re-indexing the same corpus
// yields the same keys.
func DocumentKey(sourceFile string, seq int, content string) string {
	return fmt.Sprintf("%s_%d_%016x", sourceFile, seq, uint64(IDFromContent(content)))
}

// Document is one legal passage loaded from the corpus.
// Content is mandatory; SourceFile names the corpus partition it belongs to.
type Document struct {
	Doc        string `json:"doc"`
	Title      string `json:"titre,omitempty"`
	Chapter    string `json:"chapitre,omitempty"`
	Section    string `json:"section,omitempty"`
	Article    string `json:"article,omitempty"`
	Content    string `json:"contenu"`
	Pages      string `json:"pages,omitempty"`
	Index      string `json:"index,omitempty"`
	SourceFile string `json:"source_file"`
}

// IndexedDocument is a Document as held by a vector index.
type IndexedDocument struct {
	Key      string
	Document Document
	Text     string    // Text that was embedded
	Vector   []float32 // Embedding of Text
}

// Candidate is a raw nearest-neighbor hit returned by a vector index.
// Distance is whatever metric the index uses; smaller is closer.
type Candidate struct {
	Key      string
	Document Document
	Distance float64
}

// ScoredSource is a retrieved passage together with its normalized relevance.
type ScoredSource struct {
	Doc        string  `json:"doc"`
	Title      string  `json:"titre,omitempty"`
	Chapter    string  `json:"chapitre,omitempty"`
	Article    string  `json:"article,omitempty"`
	Content    string  `json:"contenu"`
	Pages      string  `json:"pages,omitempty"`
	SourceFile string  `json:"source_file"`
	Relevance  float64 `json:"relevance_score"`
}

// NewScoredSource projects a document into a ScoredSource.
func NewScoredSource(doc Document, relevance float64) ScoredSource {
	return ScoredSource{
		Doc:        doc.Doc,
		Title:      doc.Title,
		Chapter:    doc.Chapter,
		Article:    doc.Article,
		Content:    doc.Content,
		Pages:      doc.Pages,
		SourceFile: doc.SourceFile,
		Relevance:  relevance,
	}
}

// Question is an incoming legal question.
type Question struct {
	Text         string `json:"question"`
	ContextLimit int    `json:"context_limit"`
}

// Answer is the result of answering a Question.
type Answer struct {
	Text           string         `json:"answer"`
	Sources        []ScoredSource `json:"sources"`
	Confidence     float64        `json:"confidence_score"`
	ProcessingTime float64        `json:"processing_time"` // seconds
	Timestamp      time.Time      `json:"timestamp"`
}

// HistoryEntry is one recorded question/answer exchange.
type HistoryEntry struct {
	ID         string         `json:"id"`
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	Sources    []ScoredSource `json:"sources"`
	Confidence float64        `json:"confidence_score"`
	Timestamp  time.Time      `json:"timestamp"`
}

// JudgmentPoint is a single finding reported by a specialist.
type JudgmentPoint struct {
	Article    string `json:"article"`
	Summary    string `json:"resume"`
	SourceFile string `json:"source_file"`
}

// SpecialistJudgment is the structured output of one partition specialist.
type SpecialistJudgment struct {
	Dataset    string          `json:"dataset"`
	Confidence float64         `json:"score_confiance"`
	Points     []JudgmentPoint `json:"points"`
}

// SupervisorVerdict is the final output of a multi-agent run.
type SupervisorVerdict struct {
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Citations  []string       `json:"citations"`
	Sources    []ScoredSource `json:"-"` // Attached by the coordinator, never produced by the model
}

// ReloadResult reports a corpus reload.
type ReloadResult struct {
	Message            string    `json:"message"`
	DocumentsProcessed int       `json:"documents_processed"`
	ProcessingTime     float64   `json:"processing_time"` // seconds
	Timestamp          time.Time `json:"timestamp"`
}

// IndexStats describes the contents of a vector index.
type IndexStats struct {
	TotalDocuments int    `json:"total_documents"`
	CollectionName string `json:"collection_name"`
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingDim   int    `json:"embedding_dim"`
	Degraded       bool   `json:"degraded"`
}

// CorpusStats describes the most recently loaded corpus.
type CorpusStats struct {
	TotalDocuments        int `json:"total_documents"`
	SourceFiles           int `json:"source_files,omitempty"`
	DocTypes              int `json:"doc_types,omitempty"`
	DocumentsWithArticles int `json:"documents_with_articles,omitempty"`
	DocumentsWithChapters int `json:"documents_with_chapters,omitempty"`
}

// Status is a snapshot of the assistant's health.
type Status struct {
	Initialized       bool        `json:"is_initialized"`
	OllamaAvailable   bool        `json:"ollama_available"`
	GeminiAvailable   bool        `json:"gemini_available"`
	AgentsEnabled     bool        `json:"crew_agents_enabled"`
	EmbeddingDegraded bool        `json:"embedding_degraded"`
	IndexStats        IndexStats  `json:"vector_store_stats"`
	CorpusStats       CorpusStats `json:"csv_stats"`
	HistoryCount      int         `json:"history_count"`
}

// NormalizeQuestion returns the form of a question used for exact matching.
func NormalizeQuestion(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Truncate shortens s to at most n characters, appending "..." when it cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
