package chat

import (
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
)

// ScopeNote marks messages that discuss a single note.
const ScopeNote = "note"

// Chat is the conversation attached to a note. Each note has at most one.
type Chat struct {
	ID        string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	NoteID    string    `gorm:"column:note_id;size:64;not null;uniqueIndex:idx_chats_note" json:"noteId"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index" json:"userId"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Chat) TableName() string {
	return "chats"
}

// Message is one turn of a chat.
type Message struct {
	ID        string    `gorm:"column:id;primaryKey;size:64" json:"id"`
	ChatID    string    `gorm:"column:chat_id;size:64;not null;index:idx_messages_chat_created,priority:1" json:"chatId"`
	Role      llm.Role  `gorm:"column:role;size:16;not null" json:"role"`
	Content   string    `gorm:"column:content;type:text;not null" json:"content"`
	Scope     string    `gorm:"column:scope;size:32" json:"scope,omitempty"`
	Liked     *bool     `gorm:"column:liked" json:"liked,omitempty"`
	Disliked  *bool     `gorm:"column:disliked" json:"disliked,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_messages_chat_created,priority:2" json:"createdAt"`

	NoteID string `gorm:"-" json:"noteId"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// Exchange is a user message together with the assistant reply it produced.
type Exchange struct {
	User      Message `json:"userMessage"`
	Assistant Message `json:"assistantMessage"`
}

// FeedbackInput carries the message rating; nil leaves a flag unchanged.
type FeedbackInput struct {
	Liked    *bool
	Disliked *bool
}
