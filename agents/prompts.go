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

package agents

import (
	"fmt"
	"strings"

	"github.com/poiesic/adala/core"
)

const snippetLimit = 600

const (
	specialistExpectedOutput = `JSON strict: {"dataset": "nom.csv", "score_confiance": 0-1, "points": [{"article": "", "resume": "", "source_file": ""}]}`
	supervisorExpectedOutput = `JSON strict: {"answer": "réponse synthétique", "confidence": 0-1, "citations": ["dataset1.csv - Article 5", ...]}`

	supervisorRole      = "Superviseur juridique"
	supervisorGoal      = "Croiser les synthèses des analystes CSV pour produire une réponse finale cohérente, sourcée et concise."
	supervisorBackstory = "Avocat senior chargé de valider les réponses avant envoi à l'utilisateur."

	specialistBackstory = "Juriste spécialisé qui connaît la structure du fichier et sait repérer les articles pertinents pour éclairer la question."
)

// persona is the system message given to an agent.
type persona struct {
	Role      string
	Goal      string
	Backstory string
}

func (p persona) system() string {
	return fmt.Sprintf("Tu es %s. %s\nTon objectif: %s", p.Role, p.Backstory, p.Goal)
}

func specialistPersona(dataset string) persona {
	return persona{
		Role:      "Analyste juridique " + dataset,
		Goal:      fmt.Sprintf("Fournir des faits juridiques fiables extraits uniquement du fichier %s pour répondre rapidement aux questions.", dataset),
		Backstory: specialistBackstory,
	}
}

var supervisor = persona{Role: supervisorRole, Goal: supervisorGoal, Backstory: supervisorBackstory}

// PartitionContext renders the passages retrieved from one partition.
func PartitionContext(dataset string, sources []core.ScoredSource) string {
	parts := make([]string, 0, len(sources)+1)
	parts = append(parts, fmt.Sprintf("=== Extraits issus de %s ===", dataset))
	for i, src := range sources {
		snippet := strings.TrimSpace(strings.ReplaceAll(src.Content, "\n", " "))
		snippet = core.Truncate(snippet, snippetLimit)
		parts = append(parts, fmt.Sprintf(
			"[%d] Document: %s | Article: %s | Chapitre: %s | Score: %.2f\nTexte: %s",
			i+1,
			orDefault(src.Doc, "Inconnu"),
			orDefault(src.Article, "N/A"),
			orDefault(src.Chapter, "N/A"),
			src.Relevance,
			snippet,
		))
	}
	return strings.Join(parts, "\n")
}

// SpecialistTask is the instruction given to the specialist for dataset.
func SpecialistTask(dataset, question, context string) string {
	return fmt.Sprintf("Tu es l'expert assigné au fichier %s. "+
		"Analyse la question suivante en te basant EXCLUSIVEMENT sur les extraits fournis.\n"+
		"QUESTION UTILISATEUR: %s\n\n"+
		"%s\n\n"+
		"Consignes:\n"+
		"- Ne pas inventer de nouvelles sources.\n"+
		"- Résume les passages utiles et précise l'article ou la section quand c'est possible.\n"+
		"- Retourne UNIQUEMENT du JSON valide.", dataset, question, context)
}

// SupervisorTask is the instruction given to the supervisor.
func SupervisorTask(question string) string {
	return "Tu es le superviseur juridique. Utilise les sorties JSON des analystes pour répondre " +
		"de manière synthétique à l'utilisateur.\n" +
		"QUESTION: " + question + "\n" +
		"Étapes:\n" +
		"1. Croise les points clés fournis par chaque dataset.\n" +
		"2. Priorise les passages avec le meilleur score de confiance.\n" +
		"3. Rédige la réponse finale en français professionnel avec références explicites " +
		"(doc + article).\n" +
		"4. Retourne uniquement du JSON valide."
}

// withExpectedOutput appends the output contract and any upstream results to
// a task description.
func withExpectedOutput(task, expected string, upstream []string) string {
	var b strings.Builder
	b.WriteString(task)
	if len(upstream) > 0 {
		b.WriteString("\n\nSorties des analystes:\n")
		b.WriteString(strings.Join(upstream, "\n\n"))
	}
	b.WriteString("\n\nRésultat attendu: ")
	b.WriteString(expected)
	return b.String()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
