// Package realtime fans entity change events out to the subscribed sessions of a user.
package realtime

import (
	"context"
	"errors"
	"time"
)

// Entity names the record kind an event describes.
type Entity string

const (
	EntityNote       Entity = "note"
	EntityQuiz       Entity = "quiz"
	EntityFlashcards Entity = "flashcards"
	EntityMessage    Entity = "message"
)

// Action names the change applied to the entity.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ErrInvalidEvent indicates an event without a user, entity or action.
var ErrInvalidEvent = errors.New("realtime: invalid event")

// Event announces a change to one of a user's records.
type Event struct {
	Entity    Entity    `json:"entity"`
	Action    Action    `json:"action"`
	UserID    string    `json:"userId"`
	EntityID  string    `json:"entityId"`
	NoteID    string    `json:"noteId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e Event) valid() bool {
	if e.UserID == "" || e.EntityID == "" {
		return false
	}
	switch e.Entity {
	case EntityNote, EntityQuiz, EntityFlashcards, EntityMessage:
	default:
		return false
	}
	switch e.Action {
	case ActionInsert, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
