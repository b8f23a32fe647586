package agents

import (
	"strings"
	"testing"

	"github.com/poiesic/adala/core"
	"github.com/stretchr/testify/assert"
)

func TestPartitionContext(t *testing.T) {
	sources := []core.ScoredSource{
		{Doc: "Loi 17-95", Article: "6", Chapter: "I", Content: "Le capital\nminimum ", Relevance: 0.876},
		{Content: "Texte", Relevance: 0.5},
	}

	got := PartitionContext("sa.csv", sources)

	want := "=== Extraits issus de sa.csv ===\n" +
		"[1] Document: Loi 17-95 | Article: 6 | Chapitre: I | Score: 0.88\nTexte: Le capital minimum\n" +
		"[2] Document: Inconnu | Article: N/A | Chapitre: N/A | Score: 0.50\nTexte: Texte"
	assert.Equal(t, want, got)
}

func TestPartitionContext_TruncatesLongPassages(t *testing.T) {
	long := strings.Repeat("a", 700)
	got := PartitionContext("f.csv", []core.ScoredSource{{Content: long}})

	assert.Contains(t, got, "Texte: "+strings.Repeat("a", 600)+"...")
	assert.NotContains(t, got, strings.Repeat("a", 601))
}

func TestSpecialistTask(t *testing.T) {
	got := SpecialistTask("sa.csv", "Quel capital ?", "CTX")

	assert.True(t, strings.HasPrefix(got, "Tu es l'expert assigné au fichier sa.csv. Analyse la question suivante"))
	assert.Contains(t, got, "QUESTION UTILISATEUR: Quel capital ?\n\nCTX\n\nConsignes:\n")
	assert.True(t, strings.HasSuffix(got, "- Retourne UNIQUEMENT du JSON valide."))
}

func TestSupervisorTask(t *testing.T) {
	got := SupervisorTask("Quel capital ?")

	assert.Contains(t, got, "QUESTION: Quel capital ?\nÉtapes:\n1.")
	assert.True(t, strings.HasSuffix(got, "4. Retourne uniquement du JSON valide."))
}

func TestWithExpectedOutput(t *testing.T) {
	got := withExpectedOutput("TASK", "EXPECTED", []string{"[a.csv]\n{}", "[b.csv]\n{}"})
	assert.Equal(t, "TASK\n\nSorties des analystes:\n[a.csv]\n{}\n\n[b.csv]\n{}\n\nRésultat attendu: EXPECTED", got)

	assert.Equal(t, "TASK\n\nRésultat attendu: EXPECTED", withExpectedOutput("TASK", "EXPECTED", nil))
}

func TestSpecialistPersona(t *testing.T) {
	p := specialistPersona("sa.csv")
	assert.Equal(t, "Analyste juridique sa.csv", p.Role)
	assert.Contains(t, p.system(), "Tu es Analyste juridique sa.csv.")
}
