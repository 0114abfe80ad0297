package notes

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
	"go.uber.org/zap"
)

const (
	summaryContentLimit = 16000
	summaryTemperature  = 0.3
)

const summarySystemPrompt = `You are NotePilot, an assistant that turns source material into clear study notes.
Write a structured summary of the material as an HTML fragment.
Rules:
- Use <h2> and <h3> for sections, <p> for prose, <ul>/<ol> with <li> for key points and <strong> for key terms.
- Do not include <html>, <head> or <body> tags, markdown, or code fences.
- Write formulas as inline math only, e.g. \( E = mc^2 \).
- Stay faithful to the material; do not invent facts.`

// Summarize re-runs summarization for an existing note. It is the recovery path for notes
// left in the generating status.
func (s *Service) Summarize(ctx context.Context, userID UserID, noteID NoteID) (*Note, error) {
	note, err := s.loadOwned(ctx, opSummarize, userID, noteID)
	if err != nil {
		return nil, err
	}
	if note.Status != StatusGenerating {
		if err := s.db.WithContext(ctx).Model(note).Updates(map[string]any{
			"status":     StatusGenerating,
			"updated_at": s.clock().UTC(),
		}).Error; err != nil {
			s.logError(opSummarize, "status_update_failed", err, zap.String("note_id", note.ID))
			return nil, newServiceError(opSummarize, "status_update_failed", err)
		}
		note.Status = StatusGenerating
	}
	if err := s.summarizeInto(ctx, note); err != nil {
		return note, err
	}
	return note, nil
}

func (s *Service) summarizeInto(ctx context.Context, note *Note) error {
	summary, err := s.completer.Complete(ctx, llm.Request{
		System:      summarySystemPrompt,
		User:        buildSummaryPrompt(note.Title, note.Transcript),
		Temperature: summaryTemperature,
	})
	if err != nil {
		s.logError(opSummarize, "completion_failed", err, zap.String("note_id", note.ID))
		return newServiceError(opSummarize, "completion_failed", err)
	}

	now := s.clock().UTC()
	changes := map[string]any{
		"summary":    textutil.StripCodeFence(summary),
		"status":     StatusCompleted,
		"updated_at": now,
	}
	if err := s.db.WithContext(ctx).Model(note).Updates(changes).Error; err != nil {
		s.logError(opSummarize, "update_failed", err, zap.String("note_id", note.ID))
		return newServiceError(opSummarize, "update_failed", err)
	}
	note.Summary = changes["summary"].(string)
	note.Status = StatusCompleted
	note.UpdatedAt = now
	return nil
}

func buildSummaryPrompt(title, transcript string) string {
	return fmt.Sprintf("Title: %s\n\nSource material:\n%s", title, textutil.Truncate(transcript, summaryContentLimit))
}
