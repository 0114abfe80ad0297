package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/generation"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/ingestion"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type codedError interface {
	Code() string
}

func errorBody(message, code string) gin.H {
	body := gin.H{"error": message}
	if code != "" {
		body["code"] = code
	}
	return body
}

// respondGenerationError maps a classified generation failure onto its status. Codes are only
// exposed for server-side failures.
func (h *httpHandler) respondGenerationError(c *gin.Context, err error) {
	var generationError *generation.Error
	if !errors.As(err, &generationError) {
		h.logger.Error("unclassified generation failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorBody("Internal server error", ""))
		return
	}
	switch generationError.Kind {
	case generation.KindBadRequest:
		c.JSON(http.StatusBadRequest, errorBody(generationError.Message, ""))
	case generation.KindNotFound:
		c.JSON(http.StatusNotFound, errorBody(generationError.Message, ""))
	case generation.KindForbidden:
		c.JSON(http.StatusForbidden, errorBody(generationError.Message, ""))
	default:
		h.logger.Error("generation failed",
			zap.String("kind", string(generationError.Kind)),
			zap.String("code", generationError.Code),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorBody(generationError.Message, generationError.Code))
	}
}

// respondServiceError maps notes, chat, ingestion and completion failures onto statuses.
func (h *httpHandler) respondServiceError(c *gin.Context, err error, fallbackMessage string) {
	status, message := classifyServiceError(err, fallbackMessage)
	if status < http.StatusInternalServerError {
		c.JSON(status, errorBody(message, ""))
		return
	}
	code := ""
	var coded codedError
	if errors.As(err, &coded) {
		code = coded.Code()
	}
	h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.String("code", code), zap.Error(err))
	c.JSON(status, errorBody(message, code))
}

func classifyServiceError(err error, fallbackMessage string) (int, string) {
	switch {
	case errors.Is(err, notes.ErrNotFound):
		return http.StatusNotFound, "Note not found"
	case errors.Is(err, notes.ErrForbidden), errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, chat.ErrMessageNotFound):
		return http.StatusNotFound, "Message not found"
	case errors.Is(err, notes.ErrNothingToUpdate), errors.Is(err, chat.ErrNothingToUpdate):
		return http.StatusBadRequest, "No fields to update"
	case errors.Is(err, notes.ErrInvalidTitle):
		return http.StatusBadRequest, "Title must not be blank"
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, "content is required"
	case errors.Is(err, ingestion.ErrUnsupportedSource):
		return http.StatusBadRequest, "Unsupported source type"
	case errors.Is(err, ingestion.ErrMissingInput):
		return http.StatusBadRequest, "Missing source input"
	case errors.Is(err, ingestion.ErrEmptyContent):
		return http.StatusBadRequest, "Source has no extractable text"
	case errors.Is(err, ingestion.ErrUnreadableDocument):
		return http.StatusBadRequest, "Unreadable document"
	case errors.Is(err, llm.ErrMissingAPIKey):
		return http.StatusInternalServerError, "Missing OpenAI API key"
	case errors.Is(err, ingestion.ErrRemoteFailure):
		return http.StatusBadGateway, "Failed to fetch source"
	case errors.Is(err, llm.ErrEmptyResponse):
		return http.StatusInternalServerError, "Empty response from model"
	case errors.Is(err, llm.ErrUpstream):
		return http.StatusBadGateway, "Failed to reach the model"
	default:
		return http.StatusInternalServerError, fallbackMessage
	}
}
