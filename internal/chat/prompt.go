package chat

import (
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
)

const (
	contextLimit    = 12000
	historyLimit    = 20
	chatTemperature = 0.5
)

const chatSystemPrompt = `You are NotePilot, a study assistant answering questions about one of the student's notes.
Answer from the note material below when it covers the question and say so when it does not.
Keep answers short and concrete. Write formulas as inline math, e.g. \( a^2 + b^2 = c^2 \).`

// buildSystemPrompt appends the note material, summary first, truncated to contextLimit characters.
func buildSystemPrompt(note notes.Context) string {
	var material strings.Builder
	if title := strings.TrimSpace(note.Title); title != "" {
		material.WriteString("Title: ")
		material.WriteString(title)
		material.WriteString("\n\n")
	}
	if summary := strings.TrimSpace(note.Summary); summary != "" {
		material.WriteString("Summary:\n")
		material.WriteString(summary)
		material.WriteString("\n\n")
	}
	if transcript := strings.TrimSpace(note.Transcript); transcript != "" {
		material.WriteString("Transcript:\n")
		material.WriteString(transcript)
	}
	return chatSystemPrompt + "\n\nNote material:\n" + textutil.Truncate(strings.TrimSpace(material.String()), contextLimit)
}

func historyMessages(history []Message) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, message := range history {
		messages = append(messages, llm.Message{Role: message.Role, Content: message.Content})
	}
	return messages
}
