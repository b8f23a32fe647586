package search

import "strings"

// Stop words to filter out before hashing query and document terms
var stopWords = map[string]bool{
	// French
	"le": true, "la": true, "les": true, "l": true, "un": true, "une": true,
	"des": true, "du": true, "de": true, "d": true, "et": true, "ou": true,
	"à": true, "au": true, "aux": true, "en": true, "dans": true, "par": true,
	"pour": true, "sur": true, "avec": true, "est": true, "sont": true,
	"que": true, "qui": true, "quel": true, "quelle": true, "quels": true,
	"quelles": true, "ce": true, "cette": true, "ces": true, "se": true,
	"il": true, "elle": true, "qu": true, "ne": true, "pas": true,
	// English
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"and": true, "in": true, "to": true, "for": true, "on": true, "with": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words.
// Elided articles ("l'article", "d'une") are split on the apostrophe.
func tokenizeAndFilter(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '\'', '’':
			return true
		}
		return false
	})
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.Trim(word, ".,!?;:\"-()[]{}«»|")

		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}
