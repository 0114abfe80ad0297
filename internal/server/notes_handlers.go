package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/ingestion"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/realtime"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxUploadBytes = 25 << 20
	uploadTooLarge = "Uploaded file exceeds 25 MB"
)

type createNoteRequestPayload struct {
	SourceType string `json:"sourceType" form:"sourceType"`
	Title      string `json:"title" form:"title"`
	Text       string `json:"text" form:"text"`
	URL        string `json:"url" form:"url"`
	Transcript string `json:"transcript" form:"transcript"`
}

type updateNoteRequestPayload struct {
	Title    *string `json:"title"`
	Summary  *string `json:"summary"`
	Liked    *bool   `json:"liked"`
	Disliked *bool   `json:"disliked"`
	Feedback *string `json:"feedback"`
}

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	input, problem := readCreateInput(c)
	if problem != "" {
		c.JSON(http.StatusBadRequest, errorBody(problem, ""))
		return
	}

	note, err := h.notesService.Create(c.Request.Context(), userID(c), input)
	if note != nil {
		h.publish(c, realtime.EntityNote, realtime.ActionInsert, note.ID, note.ID)
	}
	if err != nil && note != nil {
		// the note stays generating until POST /notes/:id/summarize succeeds
		status, message := classifyServiceError(err, "Failed to summarize note")
		body := errorBody(message, "")
		var coded codedError
		if errors.As(err, &coded) {
			body["code"] = coded.Code()
		}
		body["noteId"] = note.ID
		h.logger.Error("note summarization failed", zap.String("note_id", note.ID), zap.Error(err))
		c.JSON(status, body)
		return
	}
	if err != nil {
		h.respondServiceError(c, err, "Failed to create note")
		return
	}
	c.JSON(http.StatusCreated, note)
}

// readCreateInput accepts JSON or a multipart form with an optional file part. It returns a
// client-facing problem description when the request is malformed.
func readCreateInput(c *gin.Context) (notes.CreateInput, string) {
	var request createNoteRequestPayload
	var fileHeader *multipart.FileHeader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&request); err != nil {
			return notes.CreateInput{}, "Invalid form body"
		}
		if header, err := c.FormFile("file"); err == nil {
			fileHeader = header
		}
	} else if err := c.ShouldBindJSON(&request); err != nil {
		return notes.CreateInput{}, "Invalid JSON body"
	}

	sourceType, err := ingestion.ParseSourceType(request.SourceType)
	if err != nil {
		return notes.CreateInput{}, "Unsupported source type"
	}
	input := notes.CreateInput{
		SourceType: sourceType,
		Title:      request.Title,
		Text:       request.Text,
		URL:        request.URL,
		Transcript: request.Transcript,
	}
	if fileHeader != nil {
		data, problem := readUpload(fileHeader)
		if problem != "" {
			return notes.CreateInput{}, problem
		}
		input.FileName = fileHeader.Filename
		input.File = data
	}
	return input, ""
}

func readUpload(header *multipart.FileHeader) ([]byte, string) {
	if header.Size > maxUploadBytes {
		return nil, uploadTooLarge
	}
	file, err := header.Open()
	if err != nil {
		return nil, "Unreadable upload"
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, "Unreadable upload"
	}
	if len(data) > maxUploadBytes {
		return nil, uploadTooLarge
	}
	return data, ""
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	list, err := h.notesService.List(c.Request.Context(), userID(c))
	if err != nil {
		h.respondServiceError(c, err, "Failed to list notes")
		return
	}
	if list == nil {
		list = []notes.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": list})
}

func (h *httpHandler) handleGetNote(c *gin.Context) {
	noteID, ok := pathNoteID(c)
	if !ok {
		return
	}
	note, err := h.notesService.Get(c.Request.Context(), userID(c), noteID)
	if err != nil {
		h.respondServiceError(c, err, "Failed to load note")
		return
	}
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	noteID, ok := pathNoteID(c)
	if !ok {
		return
	}
	var request updateNoteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid JSON body", ""))
		return
	}
	note, err := h.notesService.Update(c.Request.Context(), userID(c), noteID, notes.UpdateInput{
		Title:    request.Title,
		Summary:  request.Summary,
		Liked:    request.Liked,
		Disliked: request.Disliked,
		Feedback: request.Feedback,
	})
	if err != nil {
		h.respondServiceError(c, err, "Failed to update note")
		return
	}
	h.publish(c, realtime.EntityNote, realtime.ActionUpdate, note.ID, note.ID)
	c.JSON(http.StatusOK, note)
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	noteID, ok := pathNoteID(c)
	if !ok {
		return
	}
	if err := h.notesService.Delete(c.Request.Context(), userID(c), noteID); err != nil {
		h.respondServiceError(c, err, "Failed to delete note")
		return
	}
	h.publish(c, realtime.EntityNote, realtime.ActionDelete, noteID.String(), noteID.String())
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleSummarizeNote(c *gin.Context) {
	noteID, ok := pathNoteID(c)
	if !ok {
		return
	}
	note, err := h.notesService.Summarize(c.Request.Context(), userID(c), noteID)
	if note != nil {
		h.publish(c, realtime.EntityNote, realtime.ActionUpdate, note.ID, note.ID)
	}
	if err != nil {
		h.respondServiceError(c, err, "Failed to summarize note")
		return
	}
	c.JSON(http.StatusOK, note)
}
