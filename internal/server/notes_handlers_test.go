package server

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/realtime"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, stream <-chan realtime.Event) realtime.Event {
	t.Helper()
	select {
	case event := <-stream:
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for realtime event")
		return realtime.Event{}
	}
}

func TestCreateTextNoteSummarizesAndPublishes(t *testing.T) {
	api := newTestAPI(t)
	stream, cleanup := api.dispatcher.Subscribe(context.Background(), "user-1")
	defer cleanup()

	recorder := api.do(t, http.MethodPost, "/notes", "user-1", map[string]string{
		"sourceType": "text",
		"text":       "Cell biology\nMitochondria make ATP.",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	body := decodeBody(t, recorder)
	require.Equal(t, "completed", body["status"])
	require.Equal(t, "Cell biology", body["title"])
	require.Equal(t, "<h2>Cells</h2><p>Summary.</p>", body["summary"])
	require.Equal(t, "user-1", body["userId"])

	event := nextEvent(t, stream)
	require.Equal(t, realtime.EntityNote, event.Entity)
	require.Equal(t, realtime.ActionInsert, event.Action)
	require.Equal(t, body["id"], event.EntityID)
}

func TestCreateNoteRejectsBadInput(t *testing.T) {
	api := newTestAPI(t)
	testCases := []struct {
		name    string
		body    any
		message string
	}{
		{name: "malformed", body: "{", message: "Invalid JSON body"},
		{name: "unknown-source", body: map[string]string{"sourceType": "fax", "text": "x"}, message: "Unsupported source type"},
		{name: "missing-text", body: map[string]string{"sourceType": "text"}, message: "Missing source input"},
		{name: "missing-file", body: map[string]string{"sourceType": "pdf"}, message: "Missing source input"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := api.do(t, http.MethodPost, "/notes", "user-1", testCase.body)
			require.Equal(t, http.StatusBadRequest, recorder.Code, recorder.Body.String())
			require.Equal(t, testCase.message, decodeBody(t, recorder)["error"])
		})
	}
	require.Empty(t, api.model.requests)
}

func multipartRequest(t *testing.T, fields map[string]string, fileName string, file []byte) *http.Request {
	t.Helper()
	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	request := httptest.NewRequest(http.MethodPost, "/notes", &buffer)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func TestCreateNoteFromMultipartForm(t *testing.T) {
	api := newTestAPI(t)

	request := multipartRequest(t, map[string]string{"sourceType": "text", "title": "Lecture 3", "text": "Photosynthesis"}, "", nil)
	request.Header.Set("Authorization", "Bearer "+api.token(t, "user-1"))
	recorder := httptest.NewRecorder()
	api.handler.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	require.Equal(t, "Lecture 3", decodeBody(t, recorder)["title"])

	request = multipartRequest(t, map[string]string{"sourceType": "pdf"}, "broken.pdf", []byte("not a pdf"))
	request.Header.Set("Authorization", "Bearer "+api.token(t, "user-1"))
	recorder = httptest.NewRecorder()
	api.handler.ServeHTTP(recorder, request)
	require.Equal(t, http.StatusBadRequest, recorder.Code, recorder.Body.String())
	require.Equal(t, "Unreadable document", decodeBody(t, recorder)["error"])
}

func TestCreateNoteReportsSummaryFailureWithNoteID(t *testing.T) {
	api := newTestAPI(t)
	api.model.fail(fmt.Errorf("%w: status 503", llm.ErrUpstream))

	recorder := api.do(t, http.MethodPost, "/notes", "user-1", map[string]string{"sourceType": "text", "text": "Osmosis"})
	require.Equal(t, http.StatusBadGateway, recorder.Code, recorder.Body.String())
	body := decodeBody(t, recorder)
	require.Equal(t, "notes.summarize.completion_failed", body["code"])
	noteID, _ := body["noteId"].(string)
	require.NotEmpty(t, noteID)

	recorder = api.do(t, http.MethodGet, "/notes/"+noteID, "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "generating", decodeBody(t, recorder)["status"])

	recorder = api.do(t, http.MethodPost, "/notes/"+noteID+"/summarize", "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	require.Equal(t, "completed", decodeBody(t, recorder)["status"])
}

func TestNoteLifecycle(t *testing.T) {
	api := newTestAPI(t)
	first := api.createNote(t, "user-1", "First note")
	second := api.createNote(t, "user-1", "Second note")
	api.createNote(t, "user-2", "Someone else")

	recorder := api.do(t, http.MethodGet, "/notes", "user-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	listed, _ := decodeBody(t, recorder)["notes"].([]any)
	require.Len(t, listed, 2)
	ids := []any{listed[0].(map[string]any)["id"], listed[1].(map[string]any)["id"]}
	require.ElementsMatch(t, []any{first, second}, ids)

	recorder = api.do(t, http.MethodPatch, "/notes/"+first, "user-1", map[string]any{"title": "Renamed", "liked": true})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := decodeBody(t, recorder)
	require.Equal(t, "Renamed", body["title"])
	require.Equal(t, true, body["liked"])
	require.Equal(t, false, body["disliked"])

	recorder = api.do(t, http.MethodPatch, "/notes/"+first, "user-1", map[string]any{"title": "  "})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "Title must not be blank", decodeBody(t, recorder)["error"])

	recorder = api.do(t, http.MethodPatch, "/notes/"+first, "user-1", map[string]any{})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "No fields to update", decodeBody(t, recorder)["error"])

	recorder = api.do(t, http.MethodGet, "/notes/"+first, "user-2", nil)
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Equal(t, "Forbidden", decodeBody(t, recorder)["error"])

	recorder = api.do(t, http.MethodDelete, "/notes/"+first, "user-1", nil)
	require.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = api.do(t, http.MethodGet, "/notes/"+first, "user-1", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Equal(t, "Note not found", decodeBody(t, recorder)["error"])
}
