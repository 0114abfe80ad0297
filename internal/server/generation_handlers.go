package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/generation"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/realtime"
	"github.com/gin-gonic/gin"
)

type generateRequestPayload struct {
	NoteID string `json:"noteId"`
}

type quizResponsePayload struct {
	ID    string                 `json:"id"`
	Title string                 `json:"title"`
	Quiz  generation.QuizContent `json:"quiz"`
}

type flashcardsResponsePayload struct {
	ID         string                      `json:"id"`
	Flashcards generation.FlashcardContent `json:"flashcards"`
}

// bindNoteID reads {noteId} from the body. A malformed body is treated like a missing id;
// an id no note could carry is treated like an unknown note.
func bindNoteID(c *gin.Context) (notes.NoteID, bool) {
	var request generateRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.NoteID) == "" {
		c.JSON(http.StatusBadRequest, errorBody("noteId is required", ""))
		return "", false
	}
	noteID, err := notes.NewNoteID(request.NoteID)
	if err != nil {
		c.JSON(http.StatusNotFound, errorBody("Note not found", ""))
		return "", false
	}
	return noteID, true
}

func (h *httpHandler) handleGenerateQuiz(c *gin.Context) {
	noteID, ok := bindNoteID(c)
	if !ok {
		return
	}
	result, err := h.generation.GenerateQuiz(c.Request.Context(), userID(c), noteID)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	h.publish(c, realtime.EntityQuiz, realtime.ActionInsert, result.ID, result.NoteID)
	c.JSON(http.StatusCreated, quizResponsePayload{ID: result.ID, Title: result.Title, Quiz: result.Quiz})
}

func (h *httpHandler) handleGenerateFlashcards(c *gin.Context) {
	noteID, ok := bindNoteID(c)
	if !ok {
		return
	}
	result, err := h.generation.GenerateFlashcards(c.Request.Context(), userID(c), noteID)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	h.publish(c, realtime.EntityFlashcards, realtime.ActionInsert, result.ID, result.NoteID)
	c.JSON(http.StatusCreated, flashcardsResponsePayload{ID: result.ID, Flashcards: result.Flashcards})
}

func (h *httpHandler) handleLatestQuiz(c *gin.Context) {
	noteID, ok := pathNoteID(c)
	if !ok {
		return
	}
	result, err := h.generation.LatestQuiz(c.Request.Context(), userID(c), noteID)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizResponsePayload{ID: result.ID, Title: result.Title, Quiz: result.Quiz})
}

func (h *httpHandler) handleLatestFlashcards(c *gin.Context) {
	noteID, ok := pathNoteID(c)
	if !ok {
		return
	}
	result, err := h.generation.LatestFlashcards(c.Request.Context(), userID(c), noteID)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, flashcardsResponsePayload{ID: result.ID, Flashcards: result.Flashcards})
}

func pathNoteID(c *gin.Context) (notes.NoteID, bool) {
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid note id", ""))
		return "", false
	}
	return noteID, true
}
