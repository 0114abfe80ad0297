package generation

import (
	"errors"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
)

func TestBuildQuizPromptSourcePrecedence(t *testing.T) {
	prompt, err := BuildQuizPrompt(notes.Context{Title: "Bio", Transcript: "transcript text", Summary: "<p>summary</p>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt.Source != SourceTranscript || !strings.Contains(prompt.User, "transcript text") || strings.Contains(prompt.User, "summary</p>") {
		t.Fatalf("expected transcript prompt, got %+v", prompt)
	}
	if !strings.Contains(prompt.System, `"source": "transcript"`) {
		t.Fatalf("expected the schema to name the transcript source")
	}

	prompt, err = BuildQuizPrompt(notes.Context{Transcript: "   ", Summary: "<p>summary</p>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt.Source != SourceSummary || !strings.Contains(prompt.User, "<p>summary</p>") {
		t.Fatalf("expected summary fallback, got %+v", prompt)
	}

	if _, err := BuildQuizPrompt(notes.Context{}); !errors.Is(err, ErrNoQuizContent) {
		t.Fatalf("expected no content error, got %v", err)
	}
}

func TestBuildFlashcardPromptUsesSummaryOnly(t *testing.T) {
	if _, err := BuildFlashcardPrompt(notes.Context{Transcript: "transcript"}); !errors.Is(err, ErrNoFlashcardContent) {
		t.Fatalf("expected no summary error, got %v", err)
	}
	prompt, err := BuildFlashcardPrompt(notes.Context{Transcript: "transcript", Summary: "<p>summary</p>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prompt.Source != SourceSummary || strings.Contains(prompt.User, "transcript\n") {
		t.Fatalf("unexpected flashcard prompt %+v", prompt)
	}
}

func TestPromptsTruncateContent(t *testing.T) {
	long := strings.Repeat("é", ContentLimit+500)
	prompt, err := BuildQuizPrompt(notes.Context{Transcript: long})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := strings.Count(prompt.User, "é"); count != ContentLimit {
		t.Fatalf("expected %d characters of content, got %d", ContentLimit, count)
	}

	prompt, err = BuildFlashcardPrompt(notes.Context{Summary: long})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count := strings.Count(prompt.User, "é"); count != ContentLimit {
		t.Fatalf("expected %d characters of content, got %d", ContentLimit, count)
	}
}

func TestSystemPromptsStateCardinality(t *testing.T) {
	quiz, _ := BuildQuizPrompt(notes.Context{Transcript: "x"})
	for _, fragment := range []string{"between 10 and 15 questions", "exactly 4 options", "inline LaTeX", "correctIndex"} {
		if !strings.Contains(quiz.System, fragment) {
			t.Fatalf("quiz system prompt is missing %q", fragment)
		}
	}
	flashcards, _ := BuildFlashcardPrompt(notes.Context{Summary: "x"})
	for _, fragment := range []string{"between 15 and 20 flashcards", `"cards"`} {
		if !strings.Contains(flashcards.System, fragment) {
			t.Fatalf("flashcard system prompt is missing %q", fragment)
		}
	}
}
