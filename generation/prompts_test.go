package generation

import (
	"testing"

	"github.com/poiesic/adala/core"
	"github.com/stretchr/testify/assert"
)

func TestBuildContext(t *testing.T) {
	sources := []core.ScoredSource{
		{Doc: "Code du Travail", Title: "Titre I", Article: "5", Content: "Texte A", SourceFile: "travail.csv"},
		{Content: "Texte B", SourceFile: "divers.csv"},
	}

	got := BuildContext(sources)

	want := "Source 1:\nDocument: Code du Travail\nTitre: Titre I\nArticle: 5\nContenu: Texte A\nSource file: travail.csv\n" +
		"\n\n" +
		"Source 2:\nContenu: Texte B\nSource file: divers.csv\n"
	assert.Equal(t, want, got)
}

func TestBuildContext_Empty(t *testing.T) {
	assert.Empty(t, BuildContext(nil))
}

func TestLegalPrompt(t *testing.T) {
	prompt := LegalPrompt("Quel est le capital minimum ?", []core.ScoredSource{{Content: "300000 MAD", SourceFile: "sa.csv"}})

	assert.Contains(t, prompt, "Tu es un assistant juridique marocain spécialisé.")
	assert.Contains(t, prompt, "QUESTION: Quel est le capital minimum ?\n\nSOURCES JURIDIQUES:\nSource 1:\n")
	assert.Contains(t, prompt, "Contenu: 300000 MAD\n")
	assert.Contains(t, prompt, "\n\nRÉPONSE:")
}

func TestValidationPrompt(t *testing.T) {
	prompt := ValidationPrompt("Q?", "R.", []core.ScoredSource{{Content: "C", SourceFile: "f.csv"}})

	assert.Contains(t, prompt, "QUESTION: Q?\n\nRÉPONSE À VALIDER: R.\n\nSOURCES UTILISÉES:\nSource 1:")
	assert.Contains(t, prompt, `"improved_answer": "Réponse améliorée si nécessaire"`)
	assert.Contains(t, prompt, "4. Citations appropriées")
}
