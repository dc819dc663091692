package quality

import (
	"strings"

	"github.com/miradorstack/feedback-lab/internal/models"
)

const (
	// MinWords is the word count below which a response is flagged as too short.
	MinWords = 20
	// MinPromptTokens is the number of unique prompt tokens that must be exceeded
	// before the off-topic rule applies.
	MinPromptTokens = 3
	// MinOverlap is the number of shared prompt/response tokens expected of an on-topic response.
	MinOverlap = 2
)

// Checker flags likely defects in generated text. It holds no state and is
// safe for concurrent use.
type Checker struct{}

// NewChecker creates a quality checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check runs every rule against text and returns the warnings that fired, in
// rule order. The result is never nil.
func (c *Checker) Check(text, prompt string) []models.QualityWarning {
	warnings := make([]models.QualityWarning, 0, 3)

	if len(strings.Fields(text)) < MinWords {
		warnings = append(warnings, models.WarningTooShort)
	}
	if hasRepeatedSentence(text) {
		warnings = append(warnings, models.WarningRepeatedPhrases)
	}
	if offTopic(text, prompt) {
		warnings = append(warnings, models.WarningOffTopic)
	}

	return warnings
}

// Check is a convenience wrapper around a zero Checker.
func Check(text, prompt string) []models.QualityWarning {
	return (&Checker{}).Check(text, prompt)
}

func hasRepeatedSentence(text string) bool {
	seen := make(map[string]struct{})
	for _, fragment := range strings.FieldsFunc(text, isSentenceTerminator) {
		sentence := strings.ToLower(strings.TrimSpace(fragment))
		if sentence == "" {
			continue
		}
		if _, ok := seen[sentence]; ok {
			return true
		}
		seen[sentence] = struct{}{}
	}
	return false
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func offTopic(text, prompt string) bool {
	promptTokens := tokenSet(prompt)
	if len(promptTokens) <= MinPromptTokens {
		return false
	}
	responseTokens := tokenSet(text)

	overlap := 0
	for token := range promptTokens {
		if _, ok := responseTokens[token]; ok {
			overlap++
			if overlap >= MinOverlap {
				return false
			}
		}
	}
	return true
}

func tokenSet(value string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(value))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
