package payload

// Pointer fields distinguish an absent key from a zero value, so "correctIndex": 0 and
// "tip": "" both satisfy required while a missing key does not. correctIndex decodes as a
// float so integral spellings such as 1.0 pass; wholenumber rejects fractions.

// QuizDocument is the quiz shape a completion must produce.
type QuizDocument struct {
	Source    *string                `json:"source" validate:"required,oneof=transcript summary"`
	Title     *string                `json:"title,omitempty"`
	Questions []QuizQuestionDocument `json:"questions" validate:"required,min=10,max=15,dive"`
}

// QuizQuestionDocument is a single multiple-choice question.
type QuizQuestionDocument struct {
	Question     *string              `json:"question" validate:"required"`
	Options      []QuizOptionDocument `json:"options" validate:"required,len=4,dive"`
	CorrectIndex *float64             `json:"correctIndex" validate:"required,wholenumber,min=0,max=3"`
	Tip          *string              `json:"tip" validate:"required"`
}

// QuizOptionDocument is one answer option with its explanation.
type QuizOptionDocument struct {
	Text        *string `json:"text" validate:"required"`
	Explanation *string `json:"explanation" validate:"required"`
}

// FlashcardDocument is the flashcard deck shape a completion must produce.
// The deck size is only bounded below; the prompt asks for more cards than validation requires.
type FlashcardDocument struct {
	Source *string             `json:"source" validate:"required,eq=summary"`
	Cards  []FlashcardCardItem `json:"cards" validate:"required,min=1,dive"`
}

// FlashcardCardItem is one front/back pair.
type FlashcardCardItem struct {
	Front *string `json:"front" validate:"required"`
	Back  *string `json:"back" validate:"required"`
}

// TitleDocument is the reply shape of the short-title completion.
type TitleDocument struct {
	Title *string `json:"title" validate:"required"`
}

// Index returns the validated correct option index.
func (q QuizQuestionDocument) Index() int {
	if q.CorrectIndex == nil {
		return 0
	}
	return int(*q.CorrectIndex)
}

// Deref returns the pointed-to string or an empty string.
func Deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
