package generation

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
)

// ContentLimit caps the note text sent to the model.
const ContentLimit = 16000

const (
	quizTemperature      = 0.3
	flashcardTemperature = 0.3
	titleTemperature     = 0.2
)

// Prompt is a system/user message pair plus the note field it was built from.
type Prompt struct {
	System string
	User   string
	Source Source
}

const quizSystemPrompt = `You are an expert teacher who writes multiple-choice quizzes from study material.
Write between 10 and 15 questions that test understanding of the material, not trivia.
Every question has exactly 4 options, exactly one of which is correct.
Every option has a one or two sentence explanation of why it is right or wrong.
Every question has a short tip that nudges the learner without giving the answer away.
Formatting rules:
- Write math as inline LaTeX only, e.g. \( a^2 + b^2 = c^2 \). Never use display math.
- Limited markdown is allowed inside strings: **bold**, *italic* and ` + "`code`" + `. No headings, lists or tables.
Respond with a single JSON object and nothing else, using this schema:
{
  "source": "%s",
  "questions": [
    {
      "question": string,
      "options": [ { "text": string, "explanation": string } x4 ],
      "correctIndex": integer 0-3,
      "tip": string
    }
  ]
}`

const flashcardSystemPrompt = `You are an expert teacher who writes flashcards from study notes.
Write between 15 and 20 flashcards covering the key facts, definitions and ideas of the notes.
The front asks one focused question or names one term. The back answers it in one to three sentences.
Formatting rules:
- Write math as inline LaTeX only, e.g. \( F = ma \). Never use display math.
- Limited markdown is allowed inside strings: **bold**, *italic* and ` + "`code`" + `. No headings, lists or tables.
Respond with a single JSON object and nothing else, using this schema:
{
  "source": "summary",
  "cards": [ { "front": string, "back": string } ]
}`

const titleSystemPrompt = `You name study quizzes.
Write a short, descriptive title of 3 to 7 words for the quiz described by the user.
Respond with a single JSON object and nothing else: {"title": string}`

// BuildQuizPrompt prefers the transcript and falls back to the summary.
func BuildQuizPrompt(note notes.Context) (Prompt, error) {
	source, content := SourceTranscript, note.Transcript
	if strings.TrimSpace(content) == "" {
		source, content = SourceSummary, note.Summary
	}
	if strings.TrimSpace(content) == "" {
		return Prompt{}, ErrNoQuizContent
	}
	return Prompt{
		System: fmt.Sprintf(quizSystemPrompt, source),
		User:   buildUserPrompt(note.Title, source, content),
		Source: source,
	}, nil
}

// BuildFlashcardPrompt uses the summary only.
func BuildFlashcardPrompt(note notes.Context) (Prompt, error) {
	if strings.TrimSpace(note.Summary) == "" {
		return Prompt{}, ErrNoFlashcardContent
	}
	return Prompt{
		System: flashcardSystemPrompt,
		User:   buildUserPrompt(note.Title, SourceSummary, note.Summary),
		Source: SourceSummary,
	}, nil
}

func buildUserPrompt(title string, source Source, content string) string {
	var builder strings.Builder
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		builder.WriteString("Note title: ")
		builder.WriteString(trimmed)
		builder.WriteString("\n")
	}
	fmt.Fprintf(&builder, "Note %s:\n", source)
	builder.WriteString(textutil.Truncate(strings.TrimSpace(content), ContentLimit))
	return builder.String()
}

func buildTitlePrompt(noteTitle string, quiz QuizContent) string {
	var builder strings.Builder
	if trimmed := strings.TrimSpace(noteTitle); trimmed != "" {
		fmt.Fprintf(&builder, "Note title: %s\n", trimmed)
	}
	builder.WriteString("Quiz questions:\n")
	for index, question := range quiz.Questions {
		if index == 5 {
			break
		}
		fmt.Fprintf(&builder, "- %s\n", question.Question)
	}
	return builder.String()
}
