package ingestion

import (
	"strings"

	"github.com/poiesic/adala/core"
)

// storedContentLimit bounds the passage text kept in the index.
const storedContentLimit = 500

// VectorText is the text embedded for doc: its non-empty metadata followed
// by its content, joined with " | ".
func VectorText(doc core.Document) string {
	parts := make([]string, 0, 6)
	if doc.Doc != "" {
		parts = append(parts, "Document: "+doc.Doc)
	}
	if doc.Title != "" {
		parts = append(parts, "Titre: "+doc.Title)
	}
	if doc.Chapter != "" {
		parts = append(parts, "Chapitre: "+doc.Chapter)
	}
	if doc.Section != "" {
		parts = append(parts, "Section: "+doc.Section)
	}
	if doc.Article != "" {
		parts = append(parts, "Article: "+doc.Article)
	}
	parts = append(parts, "Contenu: "+doc.Content)
	return strings.Join(parts, " | ")
}

// stored returns doc as kept in the index, with its content truncated.
func stored(doc core.Document) core.Document {
	doc.Content = core.Truncate(doc.Content, storedContentLimit)
	return doc
}
