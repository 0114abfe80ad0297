// Package generation produces quizzes and flashcard decks from notes through the completion API.
package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/payload"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	opGenerateQuiz       = "generation.quiz"
	opGenerateFlashcards = "generation.flashcards"
	opLatestQuiz         = "generation.latest_quiz"
	opLatestFlashcards   = "generation.latest_flashcards"
	maxTitleLength       = 80
)

var errMissingDependency = errors.New("generation: database, notes, completer and id provider are required")

// ContextLoader reads the note projection and enforces ownership.
type ContextLoader interface {
	LoadContext(ctx context.Context, userID notes.UserID, noteID notes.NoteID) (notes.Context, error)
}

type ServiceConfig struct {
	Database   *gorm.DB
	Notes      ContextLoader
	Completer  llm.Completer
	Clock      func() time.Time
	IDProvider notes.IDProvider
	Logger     *zap.Logger
}

type Service struct {
	db         *gorm.DB
	notes      ContextLoader
	completer  llm.Completer
	writer     *Writer
	clock      func() time.Time
	idProvider notes.IDProvider
	logger     *zap.Logger
}

// QuizResult is a stored quiz as returned to the caller.
type QuizResult struct {
	ID     string
	NoteID string
	Title  string
	Quiz   QuizContent
}

// FlashcardResult is a stored flashcard set as returned to the caller.
type FlashcardResult struct {
	ID         string
	NoteID     string
	Flashcards FlashcardContent
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil || cfg.Notes == nil || cfg.Completer == nil || cfg.IDProvider == nil {
		return nil, errMissingDependency
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		notes:      cfg.Notes,
		completer:  cfg.Completer,
		writer:     NewWriter(cfg.Database, logger),
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// GenerateQuiz runs load → prompt → complete → validate → persist for a quiz.
func (s *Service) GenerateQuiz(ctx context.Context, userID notes.UserID, noteID notes.NoteID) (QuizResult, error) {
	note, err := s.loadContext(ctx, opGenerateQuiz, userID, noteID)
	if err != nil {
		return QuizResult{}, err
	}

	prompt, err := BuildQuizPrompt(note)
	if err != nil {
		return QuizResult{}, newError(KindBadRequest, opGenerateQuiz, "no_content", messageNoQuizContent, err)
	}

	reply, err := s.completer.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: quizTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return QuizResult{}, s.completionError(opGenerateQuiz, note.ID, err)
	}

	document, err := payload.Decode[payload.QuizDocument](reply)
	if err != nil {
		return QuizResult{}, s.payloadError(opGenerateQuiz, "quiz", note.ID, err)
	}

	content := quizFromDocument(document, prompt.Source)
	content.Title = s.deriveTitle(ctx, note, content)

	id, err := s.idProvider.NewID()
	if err != nil {
		return QuizResult{}, s.persistenceError(opGenerateQuiz, "quiz", note.ID, err)
	}
	quiz := &Quiz{
		ID:        id,
		NoteID:    note.ID,
		Title:     content.Title,
		Content:   datatypes.NewJSONType(content),
		Status:    StatusGenerated,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.writer.InsertQuiz(ctx, quiz); err != nil {
		return QuizResult{}, s.persistenceError(opGenerateQuiz, "quiz", note.ID, err)
	}

	return QuizResult{ID: quiz.ID, NoteID: note.ID, Title: content.Title, Quiz: content}, nil
}

// GenerateFlashcards runs load → prompt → complete → validate → persist for a flashcard deck.
func (s *Service) GenerateFlashcards(ctx context.Context, userID notes.UserID, noteID notes.NoteID) (FlashcardResult, error) {
	note, err := s.loadContext(ctx, opGenerateFlashcards, userID, noteID)
	if err != nil {
		return FlashcardResult{}, err
	}

	prompt, err := BuildFlashcardPrompt(note)
	if err != nil {
		return FlashcardResult{}, newError(KindBadRequest, opGenerateFlashcards, "no_summary", messageNoFlashcardContent, err)
	}

	reply, err := s.completer.Complete(ctx, llm.Request{
		System:      prompt.System,
		User:        prompt.User,
		Temperature: flashcardTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return FlashcardResult{}, s.completionError(opGenerateFlashcards, note.ID, err)
	}

	document, err := payload.Decode[payload.FlashcardDocument](reply)
	if err != nil {
		return FlashcardResult{}, s.payloadError(opGenerateFlashcards, "flashcards", note.ID, err)
	}
	content := flashcardsFromDocument(document)

	id, err := s.idProvider.NewID()
	if err != nil {
		return FlashcardResult{}, s.persistenceError(opGenerateFlashcards, "flashcards", note.ID, err)
	}
	set := &FlashcardSet{
		ID:        id,
		NoteID:    note.ID,
		Content:   datatypes.NewJSONType(content),
		Status:    StatusGenerated,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.writer.InsertFlashcards(ctx, set); err != nil {
		return FlashcardResult{}, s.persistenceError(opGenerateFlashcards, "flashcards", note.ID, err)
	}

	return FlashcardResult{ID: set.ID, NoteID: note.ID, Flashcards: content}, nil
}

// LatestQuiz returns the newest quiz for the note.
func (s *Service) LatestQuiz(ctx context.Context, userID notes.UserID, noteID notes.NoteID) (QuizResult, error) {
	if _, err := s.loadContext(ctx, opLatestQuiz, userID, noteID); err != nil {
		return QuizResult{}, err
	}
	var quiz Quiz
	if err := s.latest(ctx, noteID).Take(&quiz).Error; err != nil {
		return QuizResult{}, s.lookupError(opLatestQuiz, "No quiz generated for this note yet", noteID, err)
	}
	content := quiz.Content.Data()
	title := quiz.Title
	if title == "" {
		title = content.Title
	}
	return QuizResult{ID: quiz.ID, NoteID: quiz.NoteID, Title: title, Quiz: content}, nil
}

// LatestFlashcards returns the newest flashcard set for the note.
func (s *Service) LatestFlashcards(ctx context.Context, userID notes.UserID, noteID notes.NoteID) (FlashcardResult, error) {
	if _, err := s.loadContext(ctx, opLatestFlashcards, userID, noteID); err != nil {
		return FlashcardResult{}, err
	}
	var set FlashcardSet
	if err := s.latest(ctx, noteID).Take(&set).Error; err != nil {
		return FlashcardResult{}, s.lookupError(opLatestFlashcards, "No flashcards generated for this note yet", noteID, err)
	}
	return FlashcardResult{ID: set.ID, NoteID: set.NoteID, Flashcards: set.Content.Data()}, nil
}

// DeleteByNote removes every quiz and flashcard set of a note.
func DeleteByNote(tx *gorm.DB, noteID string) error {
	if err := tx.Where("note_id = ?", noteID).Delete(&Quiz{}).Error; err != nil {
		return err
	}
	return tx.Where("note_id = ?", noteID).Delete(&FlashcardSet{}).Error
}

func (s *Service) latest(ctx context.Context, noteID notes.NoteID) *gorm.DB {
	return s.db.WithContext(ctx).
		Where("note_id = ?", noteID.String()).
		Order("created_at DESC").
		Order("id DESC")
}

func (s *Service) loadContext(ctx context.Context, operation string, userID notes.UserID, noteID notes.NoteID) (notes.Context, error) {
	note, err := s.notes.LoadContext(ctx, userID, noteID)
	switch {
	case err == nil:
		return note, nil
	case errors.Is(err, notes.ErrNotFound):
		return notes.Context{}, newError(KindNotFound, operation, "note_not_found", "Note not found", err)
	case errors.Is(err, notes.ErrForbidden):
		s.logger.Warn("note access denied",
			zap.String("operation", operation),
			zap.String("user_id", userID.String()),
			zap.String("note_id", noteID.String()),
		)
		return notes.Context{}, newError(KindForbidden, operation, "forbidden", "Forbidden", err)
	default:
		s.logError(operation, "load_context_failed", err, zap.String("note_id", noteID.String()))
		return notes.Context{}, newError(KindPersistenceFailure, operation, "load_context_failed", "Failed to load note", err)
	}
}

// deriveTitle asks for a 3–7 word title and falls back to the note title, then the first question.
func (s *Service) deriveTitle(ctx context.Context, note notes.Context, content QuizContent) string {
	reply, err := s.completer.Complete(ctx, llm.Request{
		System:      titleSystemPrompt,
		User:        buildTitlePrompt(note.Title, content),
		Temperature: titleTemperature,
		JSONMode:    true,
	})
	if err == nil {
		var document payload.TitleDocument
		document, err = payload.Decode[payload.TitleDocument](reply)
		if err == nil {
			if title := strings.TrimSpace(payload.Deref(document.Title)); title != "" {
				return textutil.Truncate(title, maxTitleLength)
			}
		}
	}
	s.logger.Info("quiz title derivation fell back",
		zap.String("note_id", note.ID),
		zap.Error(err),
	)
	return fallbackTitle(note.Title, content)
}

func fallbackTitle(noteTitle string, content QuizContent) string {
	title := strings.TrimSpace(noteTitle)
	if title == "" && len(content.Questions) > 0 {
		title = strings.TrimSpace(content.Questions[0].Question)
	}
	return textutil.Truncate(title, maxTitleLength)
}

func (s *Service) completionError(operation, noteID string, err error) error {
	s.logError(operation, "completion_failed", err, zap.String("note_id", noteID))
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		return newError(KindConfigurationMissing, operation, "missing_api_key", "Missing OpenAI API key", err)
	case errors.Is(err, llm.ErrEmptyResponse):
		return newError(KindUpstreamEmpty, operation, "empty_response", "Empty response from model", err)
	default:
		return newError(KindUpstreamFailure, operation, "completion_failed", "Failed to reach the model", err)
	}
}

func (s *Service) payloadError(operation, artifact, noteID string, err error) error {
	s.logError(operation, "invalid_payload", err, zap.String("note_id", noteID))
	if errors.Is(err, payload.ErrSchemaMismatch) {
		return newError(KindSchemaMismatch, operation, "schema_mismatch", "Invalid "+artifact+" format from model", err)
	}
	return newError(KindUpstreamMalformed, operation, "parse_failed", "Failed to parse "+artifact+" JSON", err)
}

func (s *Service) persistenceError(operation, artifact, noteID string, err error) error {
	s.logError(operation, "insert_failed", err, zap.String("note_id", noteID))
	if errors.Is(err, ErrMissingCreatedID) {
		return newError(KindPersistenceFailure, operation, "missing_created_id", "Failed to save "+artifact+": missing created id", err)
	}
	return newError(KindPersistenceFailure, operation, "insert_failed", "Failed to save "+artifact, err)
}

func (s *Service) lookupError(operation, notFoundMessage string, noteID notes.NoteID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newError(KindNotFound, operation, "not_found", notFoundMessage, ErrNoArtifact)
	}
	s.logError(operation, "query_failed", err, zap.String("note_id", noteID.String()))
	return newError(KindPersistenceFailure, operation, "query_failed", "Failed to load generated record", err)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("generation service error", attrs...)
}
