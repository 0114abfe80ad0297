// Package ingestion turns note sources (pasted text, web pages, PDFs, audio) into plain text.
package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
)

// SourceType enumerates where a note's transcript comes from.
type SourceType string

const (
	SourceText    SourceType = "text"
	SourceWebsite SourceType = "website"
	SourcePDF     SourceType = "pdf"
	SourceAudio   SourceType = "audio"
	SourceYouTube SourceType = "youtube"
)

var (
	// ErrUnsupportedSource indicates an unknown source type.
	ErrUnsupportedSource = errors.New("ingestion: unsupported source type")
	// ErrMissingInput indicates that the field the source type needs was not supplied.
	ErrMissingInput = errors.New("ingestion: missing source input")
	// ErrEmptyContent indicates that extraction succeeded but yielded no text.
	ErrEmptyContent = errors.New("ingestion: source has no extractable text")
	// ErrUnreadableDocument indicates a file that could not be parsed.
	ErrUnreadableDocument = errors.New("ingestion: unreadable document")
	// ErrRemoteFailure indicates that a remote fetch or transcription failed.
	ErrRemoteFailure = errors.New("ingestion: remote source failed")
)

// ParseSourceType validates a raw source type.
func ParseSourceType(raw string) (SourceType, error) {
	switch candidate := SourceType(strings.ToLower(strings.TrimSpace(raw))); candidate {
	case SourceText, SourceWebsite, SourcePDF, SourceAudio, SourceYouTube:
		return candidate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSource, raw)
	}
}

// Input carries the raw material for one note.
type Input struct {
	Type       SourceType
	Text       string
	URL        string
	Transcript string
	FileName   string
	File       []byte
}

// Document is the extracted text with an optional title found in the source.
type Document struct {
	Title string
	Text  string
}

// ExtractorConfig wires an Extractor.
type ExtractorConfig struct {
	Fetcher     *Fetcher
	Transcriber llm.Transcriber
}

// Extractor dispatches extraction by source type.
type Extractor struct {
	fetcher     *Fetcher
	transcriber llm.Transcriber
}

// NewExtractor constructs an Extractor. A nil fetcher gets a default one.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(FetcherConfig{})
	}
	return &Extractor{fetcher: fetcher, transcriber: cfg.Transcriber}
}

// Extract returns the document for input.
func (e *Extractor) Extract(ctx context.Context, input Input) (Document, error) {
	var (
		document Document
		err      error
	)
	switch input.Type {
	case SourceText:
		document, err = requireText(input.Text, "text")
	case SourceYouTube:
		// captions are supplied by the client
		document, err = requireText(input.Transcript, "transcript")
	case SourceWebsite:
		if strings.TrimSpace(input.URL) == "" {
			return Document{}, fmt.Errorf("%w: url", ErrMissingInput)
		}
		document, err = e.fetcher.FetchPage(ctx, input.URL)
	case SourcePDF:
		if len(input.File) == 0 {
			return Document{}, fmt.Errorf("%w: file", ErrMissingInput)
		}
		var text string
		text, err = ExtractPDFText(input.File)
		document = Document{Text: text}
	case SourceAudio:
		if len(input.File) == 0 {
			return Document{}, fmt.Errorf("%w: file", ErrMissingInput)
		}
		document, err = e.transcribe(ctx, input)
	default:
		return Document{}, fmt.Errorf("%w: %q", ErrUnsupportedSource, input.Type)
	}
	if err != nil {
		return Document{}, err
	}
	if strings.TrimSpace(document.Text) == "" {
		return Document{}, ErrEmptyContent
	}
	return document, nil
}

func (e *Extractor) transcribe(ctx context.Context, input Input) (Document, error) {
	if e.transcriber == nil {
		return Document{}, fmt.Errorf("%w: transcription is not configured", ErrRemoteFailure)
	}
	fileName := input.FileName
	if strings.TrimSpace(fileName) == "" {
		fileName = "audio.mp3"
	}
	text, err := e.transcriber.Transcribe(ctx, fileName, bytes.NewReader(input.File))
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("%w: %w", ErrRemoteFailure, err)
	}
	return Document{Text: text}, nil
}

func requireText(value string, field string) (Document, error) {
	if strings.TrimSpace(value) == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrMissingInput, field)
	}
	return Document{Text: strings.TrimSpace(value)}, nil
}
