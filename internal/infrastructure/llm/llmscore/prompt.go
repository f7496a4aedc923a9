// Package llmscore holds what the AI scoring adapters share: the prompt, the
// strict response parser and the error taxonomy.
package llmscore

import (
	"strings"

	"github.com/kirillkom/feedback-sentinel/internal/core/domain"
)

const maxSnippetRunes = 4000

func SystemPrompt() string {
	topics := make([]string, 0, len(domain.Topics))
	for _, topic := range domain.Topics {
		topics = append(topics, `"`+string(topic)+`"`)
	}

	return `You score customer feedback.
Return one strict JSON object and nothing else:
{"sentiment":{"positive":P,"neutral":N,"negative":G},"topics":{TOPIC:W,...}}
Every value is a number from 0 to 1. Sentiment values sum to 1.
Allowed topic keys: ` + strings.Join(topics, ", ") + `.
Omit topics that do not apply. No markdown, no extra keys.`
}

func UserPrompt(text string) string {
	snippet := []rune(text)
	if len(snippet) > maxSnippetRunes {
		snippet = snippet[:maxSnippetRunes]
	}
	return "Feedback:\n" + string(snippet)
}

// Prompt is the single-message form for completion endpoints without a
// system role.
func Prompt(text string) string {
	return SystemPrompt() + "\n\n" + UserPrompt(text)
}
