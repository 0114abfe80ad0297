package notes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/ingestion"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidNoteID indicates that a note identifier is empty or exceeds storage bounds.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("notes: invalid user id")
)

// NoteID represents a validated note identifier.
type NoteID string

// NewNoteID validates raw input and returns a NoteID.
func NewNoteID(rawInput string) (NoteID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidNoteID)
	return NoteID(trimmed), err
}

// String returns the underlying string identifier.
func (id NoteID) String() string {
	return string(id)
}

// UserID represents a validated canonical user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed, err := validateIdentifier(rawInput, ErrInvalidUserID)
	return UserID(trimmed), err
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

func validateIdentifier(rawInput string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", sentinel)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", sentinel, maxIdentifierLength)
	}
	return trimmed, nil
}

// Status tracks summarization progress.
type Status string

const (
	// StatusGenerating marks a note whose summary is being produced.
	StatusGenerating Status = "generating"
	// StatusCompleted marks a note with a finished summary.
	StatusCompleted Status = "completed"
)

// Note is a user's source material with its transcript and generated summary.
type Note struct {
	ID         string               `gorm:"column:id;primaryKey;size:64" json:"id"`
	UserID     string               `gorm:"column:user_id;size:190;not null;index:idx_notes_user_created,priority:1" json:"userId"`
	Title      string               `gorm:"column:title;size:512;not null" json:"title"`
	SourceType ingestion.SourceType `gorm:"column:source_type;size:32;not null" json:"sourceType"`
	SourceURL  *string              `gorm:"column:source_url;size:2048" json:"sourceUrl,omitempty"`
	Status     Status               `gorm:"column:status;size:32;not null" json:"status"`
	Transcript string               `gorm:"column:transcript;type:text;not null" json:"transcript"`
	// Summary holds HTML.
	Summary   string    `gorm:"column:summary;type:text;not null" json:"summary"`
	Liked     *bool     `gorm:"column:liked" json:"liked,omitempty"`
	Disliked  *bool     `gorm:"column:disliked" json:"disliked,omitempty"`
	Feedback  *string   `gorm:"column:feedback;type:text" json:"feedback,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_notes_user_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// Context is the projection generation flows read from a note.
type Context struct {
	ID         string
	UserID     string
	Title      string
	Transcript string
	Summary    string
}

// CreateInput describes a new note.
type CreateInput struct {
	SourceType ingestion.SourceType
	Title      string
	Text       string
	URL        string
	Transcript string
	FileName   string
	File       []byte
}

// UpdateInput lists the editable note fields; nil leaves a field unchanged.
type UpdateInput struct {
	Title    *string
	Summary  *string
	Liked    *bool
	Disliked *bool
	Feedback *string
}

func (input UpdateInput) isEmpty() bool {
	return input.Title == nil && input.Summary == nil && input.Liked == nil && input.Disliked == nil && input.Feedback == nil
}
