// Package chat keeps the note-scoped conversation between a user and the model.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/database"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingNotes      = errors.New("notes loader is required")
	errMissingCompleter  = errors.New("completer is required")
	errMissingIDProvider = errors.New("id provider is required")
)

const (
	opServiceNew  = "chat.service.new"
	opSendMessage = "chat.send_message"
	opList        = "chat.list_messages"
	opFeedback    = "chat.feedback"
)

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
	clock      func() time.Time
	idProvider notes.IDProvider
	logger     *zap.Logger
	scope      *database.OptionalColumn
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Database == nil:
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	case cfg.Notes == nil:
		return nil, newServiceError(opServiceNew, "missing_notes", errMissingNotes)
	case cfg.Completer == nil:
		return nil, newServiceError(opServiceNew, "missing_completer", errMissingCompleter)
	case cfg.IDProvider == nil:
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
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
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		scope:      database.NewOptionalColumn(Message{}.TableName(), "scope", logger),
	}, nil
}

// SendMessage appends the user's message to the note chat, asks the model for a reply and stores it.
// The user message stays stored when the completion fails.
func (s *Service) SendMessage(ctx context.Context, userID notes.UserID, noteID notes.NoteID, content string) (Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Exchange{}, newServiceError(opSendMessage, "empty_message", ErrEmptyMessage)
	}
	note, err := s.notes.LoadContext(ctx, userID, noteID)
	if err != nil {
		return Exchange{}, err
	}

	chat, err := s.ensureChat(ctx, userID, note.ID)
	if err != nil {
		s.logError(opSendMessage, "chat_create_failed", err, zap.String("note_id", note.ID))
		return Exchange{}, newServiceError(opSendMessage, "chat_create_failed", err)
	}
	history, err := s.recentMessages(ctx, chat.ID)
	if err != nil {
		s.logError(opSendMessage, "history_failed", err, zap.String("chat_id", chat.ID))
		return Exchange{}, newServiceError(opSendMessage, "history_failed", err)
	}

	userMessage, err := s.insertMessage(ctx, chat, llm.RoleUser, content)
	if err != nil {
		s.logError(opSendMessage, "insert_failed", err, zap.String("chat_id", chat.ID))
		return Exchange{}, newServiceError(opSendMessage, "insert_failed", err)
	}

	reply, err := s.completer.Complete(ctx, llm.Request{
		System:      buildSystemPrompt(note),
		History:     historyMessages(history),
		User:        content,
		Temperature: chatTemperature,
	})
	if err != nil {
		s.logError(opSendMessage, "completion_failed", err, zap.String("chat_id", chat.ID))
		return Exchange{}, newServiceError(opSendMessage, "completion_failed", err)
	}

	assistantMessage, err := s.insertMessage(ctx, chat, llm.RoleAssistant, strings.TrimSpace(reply))
	if err != nil {
		s.logError(opSendMessage, "insert_failed", err, zap.String("chat_id", chat.ID))
		return Exchange{}, newServiceError(opSendMessage, "insert_failed", err)
	}
	return Exchange{User: *userMessage, Assistant: *assistantMessage}, nil
}

// ListMessages returns the note's chat messages, oldest first. A note without a chat has none.
func (s *Service) ListMessages(ctx context.Context, userID notes.UserID, noteID notes.NoteID) ([]Message, error) {
	note, err := s.notes.LoadContext(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	var chat Chat
	err = s.db.WithContext(ctx).Where("note_id = ?", note.ID).Take(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []Message{}, nil
	}
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("note_id", note.ID))
		return nil, newServiceError(opList, "query_failed", err)
	}

	var messages []Message
	if err := s.db.WithContext(ctx).
		Where("chat_id = ?", chat.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("chat_id", chat.ID))
		return nil, newServiceError(opList, "query_failed", err)
	}
	for index := range messages {
		messages[index].NoteID = chat.NoteID
	}
	return messages, nil
}

// SetFeedback rates a message. Liking clears a dislike and vice versa unless both flags are supplied.
func (s *Service) SetFeedback(ctx context.Context, userID notes.UserID, messageID string, input FeedbackInput) (*Message, error) {
	if input.Liked == nil && input.Disliked == nil {
		return nil, newServiceError(opFeedback, "empty_update", ErrNothingToUpdate)
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, newServiceError(opFeedback, "not_found", ErrMessageNotFound)
	}

	var message Message
	err := s.db.WithContext(ctx).Where("id = ?", messageID).Take(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opFeedback, "not_found", ErrMessageNotFound)
	}
	if err != nil {
		s.logError(opFeedback, "query_failed", err, zap.String("message_id", messageID))
		return nil, newServiceError(opFeedback, "query_failed", err)
	}
	var chat Chat
	if err := s.db.WithContext(ctx).Where("id = ?", message.ChatID).Take(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newServiceError(opFeedback, "not_found", ErrMessageNotFound)
		}
		s.logError(opFeedback, "query_failed", err, zap.String("chat_id", message.ChatID))
		return nil, newServiceError(opFeedback, "query_failed", err)
	}
	noteID, err := notes.NewNoteID(chat.NoteID)
	if err != nil {
		return nil, newServiceError(opFeedback, "not_found", ErrMessageNotFound)
	}
	if _, err := s.notes.LoadContext(ctx, userID, noteID); err != nil {
		if errors.Is(err, notes.ErrForbidden) || errors.Is(err, notes.ErrNotFound) {
			return nil, newServiceError(opFeedback, "forbidden", ErrForbidden)
		}
		return nil, err
	}

	changes := map[string]any{}
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
	if err := s.db.WithContext(ctx).Model(&message).Updates(changes).Error; err != nil {
		s.logError(opFeedback, "update_failed", err, zap.String("message_id", message.ID))
		return nil, newServiceError(opFeedback, "update_failed", err)
	}
	if err := s.db.WithContext(ctx).Where("id = ?", message.ID).Take(&message).Error; err != nil {
		s.logError(opFeedback, "query_failed", err, zap.String("message_id", message.ID))
		return nil, newServiceError(opFeedback, "query_failed", err)
	}
	message.NoteID = chat.NoteID
	return &message, nil
}

// DeleteByNote removes the note's chat and its messages.
func DeleteByNote(tx *gorm.DB, noteID string) error {
	chatIDs := tx.Model(&Chat{}).Select("id").Where("note_id = ?", noteID)
	if err := tx.Where("chat_id IN (?)", chatIDs).Delete(&Message{}).Error; err != nil {
		return err
	}
	return tx.Where("note_id = ?", noteID).Delete(&Chat{}).Error
}

// ensureChat returns the note's chat, creating it on first use. A concurrent creator wins the unique index.
func (s *Service) ensureChat(ctx context.Context, userID notes.UserID, noteID string) (*Chat, error) {
	var chat Chat
	err := s.db.WithContext(ctx).Where("note_id = ?", noteID).Take(&chat).Error
	if err == nil {
		return &chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	chatID, err := s.idProvider.NewID()
	if err != nil {
		return nil, err
	}
	chat = Chat{ID: chatID, NoteID: noteID, UserID: userID.String(), CreatedAt: s.clock().UTC()}
	if createErr := s.db.WithContext(ctx).Create(&chat).Error; createErr != nil {
		var existing Chat
		if err := s.db.WithContext(ctx).Where("note_id = ?", noteID).Take(&existing).Error; err != nil {
			return nil, createErr
		}
		return &existing, nil
	}
	return &chat, nil
}

// recentMessages returns the last historyLimit messages in conversation order.
func (s *Service) recentMessages(ctx context.Context, chatID string) ([]Message, error) {
	var messages []Message
	if err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(historyLimit).
		Find(&messages).Error; err != nil {
		return nil, err
	}
	for left, right := 0, len(messages)-1; left < right; left, right = left+1, right-1 {
		messages[left], messages[right] = messages[right], messages[left]
	}
	return messages, nil
}

func (s *Service) insertMessage(ctx context.Context, chat *Chat, role llm.Role, content string) (*Message, error) {
	messageID, err := s.idProvider.NewID()
	if err != nil {
		return nil, err
	}
	message := &Message{
		ID:        messageID,
		ChatID:    chat.ID,
		Role:      role,
		Content:   content,
		Scope:     ScopeNote,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.scope.Create(s.db.WithContext(ctx), message); err != nil {
		return nil, err
	}
	if s.scope.Absent() {
		message.Scope = ""
	}
	message.NoteID = chat.NoteID
	return message, nil
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
	s.logger.Error("chat service error", attrs...)
}
