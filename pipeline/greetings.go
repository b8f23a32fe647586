package pipeline

import (
	"slices"
	"strings"

	"github.com/poiesic/adala/core"
)

const (
	welcomeReply = "Bonjour ! Je suis votre assistant juridique marocain. " +
		"Je peux vous aider à répondre à vos questions sur le droit marocain. " +
		"N'hésitez pas à me poser une question juridique !"
	thanksReply  = "De rien ! N'hésitez pas si vous avez d'autres questions juridiques."
	goodbyeReply = "Au revoir ! N'hésitez pas à revenir si vous avez des questions juridiques."
)

var greetings = []string{
	"bonjour", "bonsoir", "salut", "hello", "hi", "hey", "coucou",
	"bonne journée", "bonne soirée", "bon matin", "good morning",
	"good evening", "good afternoon", "salam", "salam alaykoum",
	"merci", "thank you", "thanks", "شكرا", "au revoir", "bye",
	"à bientôt", "goodbye",
}

var (
	thanksWords  = []string{"merci", "thank", "شكرا"}
	goodbyeWords = []string{"au revoir", "bye", "goodbye", "à bientôt"}
)

// Greeting returns the canned reply for a message that is exactly a
// greeting, thanks or farewell once trimmed and lower-cased.
func Greeting(text string) (string, bool) {
	normalized := core.NormalizeQuestion(text)
	if !slices.Contains(greetings, normalized) {
		return "", false
	}

	switch {
	case containsAny(normalized, thanksWords):
		return thanksReply, true
	case containsAny(normalized, goodbyeWords):
		return goodbyeReply, true
	default:
		return welcomeReply, true
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
