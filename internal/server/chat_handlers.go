package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/chat"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/realtime"
	"github.com/gin-gonic/gin"
)

type sendMessageRequestPayload struct {
	Content string `json:"content"`
}

type feedbackRequestPayload struct {
	Liked    *bool `json:"liked"`
	Disliked *bool `json:"disliked"`
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	noteID, ok := pathNoteID(c)
	if !ok {
		return
	}
	var request sendMessageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("content is required", ""))
		return
	}
	exchange, err := h.chatService.SendMessage(c.Request.Context(), userID(c), noteID, request.Content)
	if err != nil {
		h.respondServiceError(c, err, "Failed to send message")
		return
	}
	h.publish(c, realtime.EntityMessage, realtime.ActionInsert, exchange.User.ID, exchange.User.NoteID)
	h.publish(c, realtime.EntityMessage, realtime.ActionInsert, exchange.Assistant.ID, exchange.Assistant.NoteID)
	c.JSON(http.StatusCreated, exchange)
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	noteID, ok := pathNoteID(c)
	if !ok {
		return
	}
	messages, err := h.chatService.ListMessages(c.Request.Context(), userID(c), noteID)
	if err != nil {
		h.respondServiceError(c, err, "Failed to list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *httpHandler) handleMessageFeedback(c *gin.Context) {
	var request feedbackRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid JSON body", ""))
		return
	}
	message, err := h.chatService.SetFeedback(c.Request.Context(), userID(c), c.Param("id"), chat.FeedbackInput{
		Liked:    request.Liked,
		Disliked: request.Disliked,
	})
	if err != nil {
		h.respondServiceError(c, err, "Failed to save feedback")
		return
	}
	h.publish(c, realtime.EntityMessage, realtime.ActionUpdate, message.ID, message.NoteID)
	c.JSON(http.StatusOK, message)
}
