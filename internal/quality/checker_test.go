package quality

import (
	"strings"
	"testing"

	"github.com/miradorstack/feedback-lab/internal/models"
)

func countWarning(warnings []models.QualityWarning, target models.QualityWarning) int {
	n := 0
	for _, w := range warnings {
		if w == target {
			n++
		}
	}
	return n
}

func distinctWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "w" + strings.Repeat("x", i+1)
	}
	return strings.Join(words, " ")
}

func TestCheckShortResponse(t *testing.T) {
	warnings := NewChecker().Check("Hello there friend", "Say hi")
	if countWarning(warnings, models.WarningTooShort) != 1 {
		t.Fatalf("expected too short warning, got %v", warnings)
	}
}

func TestCheckTwentyWordsIsNotShort(t *testing.T) {
	warnings := Check(distinctWords(20), "hi")
	if countWarning(warnings, models.WarningTooShort) != 0 {
		t.Fatalf("did not expect too short warning, got %v", warnings)
	}
}

func TestCheckRepeatedPhrasesReportedOnce(t *testing.T) {
	text := "The sky is blue. the sky is blue!  THE SKY IS BLUE? Grass is green. grass is green."
	warnings := Check(text, "sky")
	if got := countWarning(warnings, models.WarningRepeatedPhrases); got != 1 {
		t.Fatalf("expected exactly one repeated phrases warning, got %d (%v)", got, warnings)
	}
}

func TestCheckEmptyFragmentsAreIgnored(t *testing.T) {
	text := "First point... Second point!!! ...   ?"
	warnings := Check(text, "point")
	if countWarning(warnings, models.WarningRepeatedPhrases) != 0 {
		t.Fatalf("empty fragments should not count as repeats, got %v", warnings)
	}
}

func TestCheckOffTopic(t *testing.T) {
	prompt := "Explain photosynthesis in green plants"
	text := "Cars need fuel. Engines convert energy into motion."
	warnings := Check(text, prompt)
	if countWarning(warnings, models.WarningOffTopic) != 1 {
		t.Fatalf("expected off-topic warning, got %v", warnings)
	}
}

func TestCheckOffTopicIgnoresShortPrompts(t *testing.T) {
	warnings := Check("Completely unrelated words here", "one two three")
	if countWarning(warnings, models.WarningOffTopic) != 0 {
		t.Fatalf("prompt with 3 tokens should not trigger off-topic, got %v", warnings)
	}
}

func TestCheckOverlapIsCaseInsensitive(t *testing.T) {
	prompt := "Explain Machine Learning in simple terms"
	text := "MACHINE learning is a field"
	warnings := Check(text, prompt)
	if countWarning(warnings, models.WarningOffTopic) != 0 {
		t.Fatalf("expected case-insensitive overlap, got %v", warnings)
	}
}

func TestCheckCleanResponse(t *testing.T) {
	prompt := "alpha beta gamma delta epsilon"
	words := strings.Fields(distinctWords(23))
	words = append(words, "alpha", "beta")
	text := strings.Join(words, " ")

	warnings := Check(text, prompt)
	if warnings == nil {
		t.Fatalf("expected non-nil slice")
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestCheckRuleOrder(t *testing.T) {
	prompt := "describe the history of ancient rome"
	text := "Bananas. bananas."
	warnings := Check(text, prompt)
	want := []models.QualityWarning{models.WarningTooShort, models.WarningRepeatedPhrases, models.WarningOffTopic}
	if len(warnings) != len(want) {
		t.Fatalf("expected %v, got %v", want, warnings)
	}
	for i := range want {
		if warnings[i] != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], warnings[i])
		}
	}
}
