package generation

import (
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/payload"
	"gorm.io/datatypes"
)

// StatusGenerated is the only status a stored quiz or flashcard set ever has.
const StatusGenerated = "generated"

// Source names which note field a study artifact was generated from.
type Source string

const (
	SourceTranscript Source = "transcript"
	SourceSummary    Source = "summary"
)

// QuizContent is the persisted and returned quiz payload.
type QuizContent struct {
	Source    Source         `json:"source"`
	Title     string         `json:"title,omitempty"`
	Questions []QuizQuestion `json:"questions"`
}

// QuizQuestion is one multiple-choice question.
type QuizQuestion struct {
	Question     string       `json:"question"`
	Options      []QuizOption `json:"options"`
	CorrectIndex int          `json:"correctIndex"`
	Tip          string       `json:"tip"`
}

// QuizOption is one answer with the reason it is right or wrong.
type QuizOption struct {
	Text        string `json:"text"`
	Explanation string `json:"explanation"`
}

// FlashcardContent is the persisted and returned flashcard payload.
type FlashcardContent struct {
	Source Source      `json:"source"`
	Cards  []Flashcard `json:"cards"`
}

// Flashcard is a front/back pair.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Quiz is an append-only generated quiz. The newest row per note is canonical.
type Quiz struct {
	ID        string                          `gorm:"column:id;primaryKey;size:64" json:"id"`
	NoteID    string                          `gorm:"column:note_id;size:64;not null;index:idx_quizzes_note_created,priority:1" json:"noteId"`
	Title     string                          `gorm:"column:title;size:512" json:"title"`
	Content   datatypes.JSONType[QuizContent] `gorm:"column:content;not null" json:"quiz"`
	Status    string                          `gorm:"column:status;size:32;not null" json:"status"`
	CreatedAt time.Time                       `gorm:"column:created_at;not null;index:idx_quizzes_note_created,priority:2" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Quiz) TableName() string {
	return "quizzes"
}

// FlashcardSet is an append-only generated flashcard deck.
type FlashcardSet struct {
	ID        string                               `gorm:"column:id;primaryKey;size:64" json:"id"`
	NoteID    string                               `gorm:"column:note_id;size:64;not null;index:idx_flashcard_sets_note_created,priority:1" json:"noteId"`
	Content   datatypes.JSONType[FlashcardContent] `gorm:"column:content;not null" json:"flashcards"`
	Status    string                               `gorm:"column:status;size:32;not null" json:"status"`
	CreatedAt time.Time                            `gorm:"column:created_at;not null;index:idx_flashcard_sets_note_created,priority:2" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (FlashcardSet) TableName() string {
	return "flashcard_sets"
}

func quizFromDocument(document payload.QuizDocument, source Source) QuizContent {
	questions := make([]QuizQuestion, 0, len(document.Questions))
	for _, item := range document.Questions {
		options := make([]QuizOption, 0, len(item.Options))
		for _, option := range item.Options {
			options = append(options, QuizOption{
				Text:        payload.Deref(option.Text),
				Explanation: payload.Deref(option.Explanation),
			})
		}
		questions = append(questions, QuizQuestion{
			Question:     payload.Deref(item.Question),
			Options:      options,
			CorrectIndex: item.Index(),
			Tip:          payload.Deref(item.Tip),
		})
	}
	// the discriminant is whatever the prompt used, never what the model echoed
	return QuizContent{Source: source, Questions: questions}
}

func flashcardsFromDocument(document payload.FlashcardDocument) FlashcardContent {
	cards := make([]Flashcard, 0, len(document.Cards))
	for _, card := range document.Cards {
		cards = append(cards, Flashcard{Front: payload.Deref(card.Front), Back: payload.Deref(card.Back)})
	}
	return FlashcardContent{Source: SourceSummary, Cards: cards}
}
