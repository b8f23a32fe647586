package generation

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/adala/core"
)

var legalTerms = []string{"article", "loi", "décret", "code"}

// Confidence scores an answer against the sources it was drafted from.
//
// An empty answer or an empty source list scores 0. Otherwise the score
// starts at 0.5 and gains 0.2 when the answer uses legal vocabulary, 0.2 when
// it names one of the source documents, and 0.1 when its length is between
// 50 and 2000 characters. The result never exceeds 1.
func Confidence(answer string, sources []core.ScoredSource) float64 {
	if answer == "" || len(sources) == 0 {
		return 0
	}

	lower := strings.ToLower(answer)
	score := 0.5

	for _, term := range legalTerms {
		if strings.Contains(lower, term) {
			score += 0.2
			break
		}
	}

	for _, src := range sources {
		if src.Doc == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(src.Doc)) {
			score += 0.2
			break
		}
	}

	if n := utf8.RuneCountInString(answer); n >= 50 && n <= 2000 {
		score += 0.1
	}

	return min(score, 1.0)
}
