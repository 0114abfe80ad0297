package notes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/ingestion"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingCompleter  = errors.New("completer is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew   = "notes.service.new"
	opCreate       = "notes.create"
	opGet          = "notes.get"
	opList         = "notes.list"
	opUpdate       = "notes.update"
	opDelete       = "notes.delete"
	opLoadContext  = "notes.load_context"
	opSummarize    = "notes.summarize"
	untitledNote   = "Untitled note"
	maxTitleLength = 80
)

// SourceExtractor turns a note source into text.
type SourceExtractor interface {
	Extract(ctx context.Context, input ingestion.Input) (ingestion.Document, error)
}

// DependentStore removes records hanging off a note inside the note's delete transaction.
type DependentStore interface {
	DeleteByNote(tx *gorm.DB, noteID string) error
}

// DependentFunc adapts a package-level delete function to DependentStore.
type DependentFunc func(tx *gorm.DB, noteID string) error

func (f DependentFunc) DeleteByNote(tx *gorm.DB, noteID string) error {
	return f(tx, noteID)
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	Extractor  SourceExtractor
	Completer  llm.Completer
	Dependents []DependentStore
}

type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	extractor  SourceExtractor
	completer  llm.Completer
	dependents []DependentStore
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Completer == nil {
		return nil, newServiceError(opServiceNew, "missing_completer", errMissingCompleter)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = ingestion.NewExtractor(ingestion.ExtractorConfig{})
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		extractor:  extractor,
		completer:  cfg.Completer,
		dependents: cfg.Dependents,
	}, nil
}

// Create extracts the source, stores the note as generating, then summarizes it.
// When summarization fails the stored note is returned alongside the error and stays generating.
func (s *Service) Create(ctx context.Context, userID UserID, input CreateInput) (*Note, error) {
	document, err := s.extractor.Extract(ctx, ingestion.Input{
		Type:       input.SourceType,
		Text:       input.Text,
		URL:        input.URL,
		Transcript: input.Transcript,
		FileName:   input.FileName,
		File:       input.File,
	})
	if err != nil {
		s.logger.Info("note source extraction failed",
			zap.String("user_id", userID.String()),
			zap.String("source_type", string(input.SourceType)),
			zap.Error(err),
		)
		return nil, newServiceError(opCreate, "extraction_failed", err)
	}

	noteID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opCreate, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	note := &Note{
		ID:         noteID,
		UserID:     userID.String(),
		Title:      resolveTitle(input.Title, document),
		SourceType: input.SourceType,
		Status:     StatusGenerating,
		Transcript: document.Text,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if sourceURL := strings.TrimSpace(input.URL); sourceURL != "" && input.SourceType == ingestion.SourceWebsite {
		note.SourceURL = &sourceURL
	}

	if err := s.db.WithContext(ctx).Create(note).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opCreate, "insert_failed", err)
	}

	if err := s.summarizeInto(ctx, note); err != nil {
		return note, err
	}
	return note, nil
}

// Get returns one of the caller's notes.
func (s *Service) Get(ctx context.Context, userID UserID, noteID NoteID) (*Note, error) {
	return s.loadOwned(ctx, opGet, userID, noteID)
}

// List returns the caller's notes, newest first.
func (s *Service) List(ctx context.Context, userID UserID) ([]Note, error) {
	var notes []Note
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at DESC").
		Order("id DESC").
		Find(&notes).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return notes, nil
}

// Update applies the non-nil fields of input. Liking a note clears a dislike and vice versa
// unless both flags are supplied explicitly.
func (s *Service) Update(ctx context.Context, userID UserID, noteID NoteID, input UpdateInput) (*Note, error) {
	if input.isEmpty() {
		return nil, newServiceError(opUpdate, "empty_update", ErrNothingToUpdate)
	}
	note, err := s.loadOwned(ctx, opUpdate, userID, noteID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{"updated_at": s.clock().UTC()}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, newServiceError(opUpdate, "invalid_title", ErrInvalidTitle)
		}
		changes["title"] = title
	}
	if input.Summary != nil {
		changes["summary"] = *input.Summary
	}
	if input.Feedback != nil {
		changes["feedback"] = *input.Feedback
	}
	if input.Liked != nil {
		changes["liked"] = *input.Liked
		if *input.Liked && input.Disliked == nil {
			changes["disliked"] = false
		}
	}
	if input.Disliked != nil {
		changes["disliked"] = *input.Disliked
		if *input.Disliked && input.Liked == nil {
			changes["liked"] = false
		}
	}

	if err := s.db.WithContext(ctx).Model(note).Updates(changes).Error; err != nil {
		s.logError(opUpdate, "update_failed", err, zap.String("note_id", note.ID))
		return nil, newServiceError(opUpdate, "update_failed", err)
	}
	return s.loadOwned(ctx, opUpdate, userID, noteID)
}

// Delete removes the note and every record that hangs off it.
func (s *Service) Delete(ctx context.Context, userID UserID, noteID NoteID) error {
	note, err := s.loadOwned(ctx, opDelete, userID, noteID)
	if err != nil {
		return err
	}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range s.dependents {
			if err := dependent.DeleteByNote(tx, note.ID); err != nil {
				return err
			}
		}
		return tx.Delete(&Note{}, "id = ?", note.ID).Error
	})
	if txErr != nil {
		s.logError(opDelete, "delete_failed", txErr, zap.String("note_id", note.ID))
		return newServiceError(opDelete, "delete_failed", txErr)
	}
	return nil
}

// LoadContext fetches the generation projection of a note and checks ownership.
func (s *Service) LoadContext(ctx context.Context, userID UserID, noteID NoteID) (Context, error) {
	var row Context
	err := s.db.WithContext(ctx).
		Model(&Note{}).
		Select("id", "user_id", "title", "transcript", "summary").
		Where("id = ?", noteID.String()).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Context{}, newServiceError(opLoadContext, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(opLoadContext, "query_failed", err, zap.String("note_id", noteID.String()))
		return Context{}, newServiceError(opLoadContext, "query_failed", err)
	}
	if row.UserID != userID.String() {
		return Context{}, newServiceError(opLoadContext, "forbidden", ErrForbidden)
	}
	return row, nil
}

func (s *Service) loadOwned(ctx context.Context, operation string, userID UserID, noteID NoteID) (*Note, error) {
	var note Note
	err := s.db.WithContext(ctx).Where("id = ?", noteID.String()).Take(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(operation, "not_found", ErrNotFound)
	}
	if err != nil {
		s.logError(operation, "query_failed", err, zap.String("note_id", noteID.String()))
		return nil, newServiceError(operation, "query_failed", err)
	}
	if note.UserID != userID.String() {
		return nil, newServiceError(operation, "forbidden", ErrForbidden)
	}
	return &note, nil
}

// resolveTitle prefers the supplied title, then one found in the source, then the first transcript line.
func resolveTitle(supplied string, document ingestion.Document) string {
	if title := strings.TrimSpace(supplied); title != "" {
		return title
	}
	if title := strings.TrimSpace(document.Title); title != "" {
		return title
	}
	if line := textutil.FirstLine(document.Text); line != "" {
		return textutil.Truncate(line, maxTitleLength)
	}
	return untitledNote
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
	s.logger.Error("notes service error", attrs...)
}
