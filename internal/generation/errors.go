package generation

import (
	"errors"
	"fmt"
)

// Kind classifies generation failures for the HTTP boundary.
type Kind string

const (
	KindBadRequest           Kind = "bad_request"
	KindNotFound             Kind = "not_found"
	KindForbidden            Kind = "forbidden"
	KindUpstreamFailure      Kind = "upstream_failure"
	KindUpstreamEmpty        Kind = "upstream_empty"
	KindUpstreamMalformed    Kind = "upstream_malformed"
	KindSchemaMismatch       Kind = "schema_mismatch"
	KindPersistenceFailure   Kind = "persistence_failure"
	KindConfigurationMissing Kind = "configuration_missing"
)

const (
	messageNoQuizContent      = "No content available on note to generate a quiz"
	messageNoFlashcardContent = "No summary available on note to generate flashcards"
)

var (
	// ErrNoQuizContent indicates a note without transcript and summary.
	ErrNoQuizContent = errors.New("note has no content for a quiz")
	// ErrNoFlashcardContent indicates a note without a summary.
	ErrNoFlashcardContent = errors.New("note has no summary for flashcards")
	// ErrMissingCreatedID indicates an insert that did not yield a record id.
	ErrMissingCreatedID = errors.New("missing created id")
	// ErrNoArtifact indicates that a note has no generated quiz or flashcard set yet.
	ErrNoArtifact = errors.New("no generated record for note")
)

// Error is a classified generation failure. Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, operation, reason, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    fmt.Sprintf("%s.%s", operation, reason),
		Message: message,
		Err:     cause,
	}
}
