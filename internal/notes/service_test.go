package notes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/ingestion"
	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("note-%03d", p.next), nil
}

type scriptedCompleter struct {
	replies  []string
	errs     []error
	requests []llm.Request
}

func (c *scriptedCompleter) Complete(ctx context.Context, request llm.Request) (string, error) {
	index := len(c.requests)
	c.requests = append(c.requests, request)
	if index < len(c.errs) && c.errs[index] != nil {
		return "", c.errs[index]
	}
	if index < len(c.replies) {
		return c.replies[index], nil
	}
	return "<p>summary</p>", nil
}

type recordingDependent struct {
	deleted []string
}

func (d *recordingDependent) DeleteByNote(tx *gorm.DB, noteID string) error {
	d.deleted = append(d.deleted, noteID)
	return nil
}

type steppingClock struct {
	current time.Time
}

func (c *steppingClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

func newTestService(t *testing.T, completer *scriptedCompleter, dependents ...DependentStore) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notes.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Note{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	clock := &steppingClock{current: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: &sequenceIDProvider{},
		Completer:  completer,
		Dependents: dependents,
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustNoteID(t *testing.T, value string) NoteID {
	t.Helper()
	id, err := NewNoteID(value)
	if err != nil {
		t.Fatalf("unexpected note id error: %v", err)
	}
	return id
}

func TestCreateTextNoteSummarizesAndCompletes(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"```html\n<h2>Cells</h2><p>Basic unit of life.</p>\n```"}}
	service, db := newTestService(t, completer)
	userID := mustUserID(t, "user-1")

	transcript := "Cell biology lecture\n" + strings.Repeat("x", 17000)
	note, err := service.Create(context.Background(), userID, CreateInput{
		SourceType: ingestion.SourceText,
		Text:       transcript,
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if note.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %s", note.Status)
	}
	if note.Title != "Cell biology lecture" {
		t.Fatalf("expected first line title, got %q", note.Title)
	}
	if note.Summary != "<h2>Cells</h2><p>Basic unit of life.</p>" {
		t.Fatalf("unexpected summary %q", note.Summary)
	}

	if len(completer.requests) != 1 {
		t.Fatalf("expected one completion, got %d", len(completer.requests))
	}
	request := completer.requests[0]
	if request.JSONMode {
		t.Fatalf("summaries are html, not json mode")
	}
	if strings.Count(request.User, "x") != summaryContentLimit-len("Cell biology lecture\n") {
		t.Fatalf("expected transcript to be truncated to %d characters", summaryContentLimit)
	}

	var stored Note
	if err := db.Where("id = ?", note.ID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload note: %v", err)
	}
	if stored.Status != StatusCompleted || stored.Summary != note.Summary || stored.UserID != "user-1" {
		t.Fatalf("unexpected stored note %+v", stored)
	}
}

func TestCreateKeepsGeneratingNoteWhenSummarizationFails(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{llm.ErrUpstream}, replies: []string{"", "<p>recovered</p>"}}
	service, _ := newTestService(t, completer)
	userID := mustUserID(t, "user-1")

	note, err := service.Create(context.Background(), userID, CreateInput{
		SourceType: ingestion.SourceYouTube,
		Title:      "Lecture 4",
		Transcript: "captions",
	})
	if !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if note == nil || note.Status != StatusGenerating {
		t.Fatalf("expected generating note to be returned, got %+v", note)
	}

	var serviceError *ServiceError
	if !errors.As(err, &serviceError) || serviceError.Code() != "notes.summarize.completion_failed" {
		t.Fatalf("unexpected service error %v", err)
	}

	recovered, err := service.Summarize(context.Background(), userID, mustNoteID(t, note.ID))
	if err != nil {
		t.Fatalf("unexpected summarize error: %v", err)
	}
	if recovered.Status != StatusCompleted || recovered.Summary != "<p>recovered</p>" {
		t.Fatalf("unexpected recovered note %+v", recovered)
	}
}

func TestCreateRejectsEmptySource(t *testing.T) {
	completer := &scriptedCompleter{}
	service, db := newTestService(t, completer)

	_, err := service.Create(context.Background(), mustUserID(t, "user-1"), CreateInput{SourceType: ingestion.SourceText})
	if !errors.Is(err, ingestion.ErrMissingInput) {
		t.Fatalf("expected missing input error, got %v", err)
	}
	var count int64
	db.Model(&Note{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no note to be stored, found %d", count)
	}
	if len(completer.requests) != 0 {
		t.Fatalf("expected no completion calls")
	}
}

func TestLoadContextEnforcesOwnership(t *testing.T) {
	service, _ := newTestService(t, &scriptedCompleter{})
	owner := mustUserID(t, "owner")
	note, err := service.Create(context.Background(), owner, CreateInput{SourceType: ingestion.SourceText, Text: "body"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	loaded, err := service.LoadContext(context.Background(), owner, mustNoteID(t, note.ID))
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.Transcript != "body" || loaded.Summary != "<p>summary</p>" || loaded.Title != "body" {
		t.Fatalf("unexpected context %+v", loaded)
	}

	if _, err := service.LoadContext(context.Background(), mustUserID(t, "intruder"), mustNoteID(t, note.ID)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := service.LoadContext(context.Background(), owner, mustNoteID(t, "missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListReturnsOwnNotesNewestFirst(t *testing.T) {
	service, _ := newTestService(t, &scriptedCompleter{})
	userID := mustUserID(t, "user-1")
	for _, title := range []string{"first", "second", "third"} {
		if _, err := service.Create(context.Background(), userID, CreateInput{SourceType: ingestion.SourceText, Title: title, Text: "t"}); err != nil {
			t.Fatalf("unexpected create error: %v", err)
		}
	}
	if _, err := service.Create(context.Background(), mustUserID(t, "user-2"), CreateInput{SourceType: ingestion.SourceText, Text: "other"}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	notes, err := service.List(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}
	if notes[0].Title != "third" || notes[2].Title != "first" {
		t.Fatalf("unexpected order: %s, %s, %s", notes[0].Title, notes[1].Title, notes[2].Title)
	}
}

func TestUpdateTogglesFeedbackFlags(t *testing.T) {
	service, _ := newTestService(t, &scriptedCompleter{})
	userID := mustUserID(t, "user-1")
	note, err := service.Create(context.Background(), userID, CreateInput{SourceType: ingestion.SourceText, Text: "t"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	noteID := mustNoteID(t, note.ID)

	disliked := true
	updated, err := service.Update(context.Background(), userID, noteID, UpdateInput{Disliked: &disliked})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Disliked == nil || !*updated.Disliked {
		t.Fatalf("expected disliked flag")
	}

	liked := true
	title := "  Renamed  "
	updated, err = service.Update(context.Background(), userID, noteID, UpdateInput{Liked: &liked, Title: &title})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Liked == nil || !*updated.Liked || updated.Disliked == nil || *updated.Disliked {
		t.Fatalf("expected like to clear dislike, got liked=%v disliked=%v", updated.Liked, updated.Disliked)
	}
	if updated.Title != "Renamed" {
		t.Fatalf("unexpected title %q", updated.Title)
	}

	if _, err := service.Update(context.Background(), userID, noteID, UpdateInput{}); !errors.Is(err, ErrNothingToUpdate) {
		t.Fatalf("expected empty update error, got %v", err)
	}
	blank := " "
	if _, err := service.Update(context.Background(), userID, noteID, UpdateInput{Title: &blank}); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("expected invalid title error, got %v", err)
	}
	if _, err := service.Update(context.Background(), mustUserID(t, "user-2"), noteID, UpdateInput{Liked: &liked}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDeleteRemovesDependents(t *testing.T) {
	dependent := &recordingDependent{}
	service, db := newTestService(t, &scriptedCompleter{}, dependent)
	userID := mustUserID(t, "user-1")
	note, err := service.Create(context.Background(), userID, CreateInput{SourceType: ingestion.SourceText, Text: "t"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	if err := service.Delete(context.Background(), mustUserID(t, "user-2"), mustNoteID(t, note.ID)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := service.Delete(context.Background(), userID, mustNoteID(t, note.ID)); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if len(dependent.deleted) != 1 || dependent.deleted[0] != note.ID {
		t.Fatalf("expected dependent cleanup for %s, got %v", note.ID, dependent.deleted)
	}
	var count int64
	db.Model(&Note{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected note to be deleted")
	}
}

func TestResolveTitle(t *testing.T) {
	long := strings.Repeat("y", 120)
	testCases := []struct {
		name     string
		supplied string
		document ingestion.Document
		expected string
	}{
		{name: "supplied", supplied: " Mine ", document: ingestion.Document{Title: "Page", Text: "line"}, expected: "Mine"},
		{name: "document", document: ingestion.Document{Title: "Page", Text: "line"}, expected: "Page"},
		{name: "first-line", document: ingestion.Document{Text: "\n" + long + "\nmore"}, expected: long[:maxTitleLength]},
		{name: "untitled", document: ingestion.Document{Text: "  "}, expected: untitledNote},
	}
	for _, testCase := range testCases {
		if actual := resolveTitle(testCase.supplied, testCase.document); actual != testCase.expected {
			t.Fatalf("%s: expected %q, got %q", testCase.name, testCase.expected, actual)
		}
	}
}
