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
	"context"
	"fmt"
	"time"

	"github.com/poiesic/adala/ai"
	"github.com/poiesic/adala/core"
	"github.com/poiesic/adala/storage"
)

// keyedDocument is a document paired with its index key.
type keyedDocument struct {
	key string
	doc core.Document
}

// batchProcessor embeds and stores one batch of documents.
type batchProcessor struct {
	index          storage.VectorIndex
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// process embeds the batch, retrying failed embedding calls, and writes it
// to the index. It returns the embedding dimension.
func (bp *batchProcessor) process(ctx context.Context, batch []keyedDocument) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	texts := make([]string, len(batch))
	for i, item := range batch {
		texts[i] = VectorText(item.doc)
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(batch) {
		return 0, fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(batch), len(embeddings))
	}

	docs := make([]*core.IndexedDocument, len(batch))
	for i, item := range batch {
		docs[i] = &core.IndexedDocument{
			Key:      item.key,
			Document: stored(item.doc),
			Text:     texts[i],
			Vector:   embeddings[i],
		}
	}

	if err := bp.index.AddDocuments(ctx, docs...); err != nil {
		return 0, fmt.Errorf("failed to add documents: %w", err)
	}
	return len(embeddings[0]), nil
}
