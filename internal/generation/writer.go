package generation

import (
	"context"
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Writer inserts generated records. Older deployments may lack quizzes.title, in which
// case quizzes are stored without it and the title only lives inside the content payload.
type Writer struct {
	db         *gorm.DB
	quizTitles *database.OptionalColumn
}

// NewWriter constructs a Writer.
func NewWriter(db *gorm.DB, logger *zap.Logger) *Writer {
	return &Writer{
		db:         db,
		quizTitles: database.NewOptionalColumn(Quiz{}.TableName(), "title", logger),
	}
}

// InsertQuiz stores quiz, dropping the title column when the table does not have it.
func (w *Writer) InsertQuiz(ctx context.Context, quiz *Quiz) error {
	if err := checkCreatedID(quiz.ID); err != nil {
		return err
	}
	return w.quizTitles.Create(w.db.WithContext(ctx), quiz)
}

// InsertFlashcards stores set.
func (w *Writer) InsertFlashcards(ctx context.Context, set *FlashcardSet) error {
	if err := checkCreatedID(set.ID); err != nil {
		return err
	}
	return w.db.WithContext(ctx).Create(set).Error
}

// checkCreatedID rejects records without an id.
func checkCreatedID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingCreatedID
	}
	return nil
}
