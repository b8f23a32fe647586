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

package generation

import (
	"fmt"
	"strings"

	"github.com/poiesic/adala/core"
)

const legalPromptTemplate = `Tu es un assistant juridique marocain spécialisé. Tu dois répondre aux questions en te basant UNIQUEMENT sur les sources juridiques fournies ci-dessous.

IMPORTANT:
- Réponds uniquement en français
- Cite toujours la source exacte (document, article, etc.)
- Ne donne pas d'avis personnel ou d'interprétation
- Si l'information n'est pas dans les sources, dis-le clairement
- Sois précis et professionnel

QUESTION: %s

SOURCES JURIDIQUES:
%s

RÉPONSE:`

const validationPromptTemplate = `Tu es un expert juridique marocain. Valide et améliore cette réponse d'assistant juridique.

QUESTION: %s

RÉPONSE À VALIDER: %s

SOURCES UTILISÉES:
%s

Évalue la réponse selon ces critères:
1. Exactitude juridique
2. Correspondance avec les sources
3. Clarté et professionnalisme
4. Citations appropriées

Réponds au format JSON:
{
    "improved_answer": "Réponse améliorée si nécessaire",
    "confidence_score": 0.0,
    "improvements": ["liste des améliorations"],
    "notes": "commentaires additionnels"
}`

// BuildContext renders sources as numbered blocks for a prompt.
// Empty metadata fields are left out.
func BuildContext(sources []core.ScoredSource) string {
	blocks := make([]string, 0, len(sources))
	for i, src := range sources {
		var b strings.Builder
		fmt.Fprintf(&b, "Source %d:\n", i+1)
		if src.Doc != "" {
			fmt.Fprintf(&b, "Document: %s\n", src.Doc)
		}
		if src.Title != "" {
			fmt.Fprintf(&b, "Titre: %s\n", src.Title)
		}
		if src.Chapter != "" {
			fmt.Fprintf(&b, "Chapitre: %s\n", src.Chapter)
		}
		if src.Article != "" {
			fmt.Fprintf(&b, "Article: %s\n", src.Article)
		}
		fmt.Fprintf(&b, "Contenu: %s\n", src.Content)
		fmt.Fprintf(&b, "Source file: %s\n", src.SourceFile)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

// LegalPrompt asks the local model to answer question from sources only.
func LegalPrompt(question string, sources []core.ScoredSource) string {
	return fmt.Sprintf(legalPromptTemplate, question, BuildContext(sources))
}

// ValidationPrompt asks the cloud model to review answer and reply in JSON.
func ValidationPrompt(question, answer string, sources []core.ScoredSource) string {
	return fmt.Sprintf(validationPromptTemplate, question, answer, BuildContext(sources))
}
