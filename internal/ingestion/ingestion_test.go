package ingestion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/llm"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title>  Cell Biology
    Basics </title>
  <style>body { color: red; }</style>
  <script>var tracking = "ignore me";</script>
</head>
<body>
  <h1>Cells</h1>
  <p>Cells are the basic unit of life.</p><p>Mitochondria produce ATP.</p>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestParseHTMLStripsNonContent(t *testing.T) {
	document, err := ParseHTML(samplePage)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if document.Title != "Cell Biology Basics" {
		t.Fatalf("unexpected title %q", document.Title)
	}
	for _, unwanted := range []string{"tracking", "color: red", "Enable JavaScript", "Cell Biology Basics"} {
		if strings.Contains(document.Text, unwanted) {
			t.Fatalf("expected %q to be stripped from %q", unwanted, document.Text)
		}
	}
	if document.Text != "Cells Cells are the basic unit of life. Mitochondria produce ATP." {
		t.Fatalf("unexpected text %q", document.Text)
	}
}

func TestParseHTMLTitleFallsBackToHeadings(t *testing.T) {
	document, err := ParseHTML(`<html><body><h2>Second level</h2><h1>Top level</h1><p>x</p></body></html>`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if document.Title != "Top level" {
		t.Fatalf("expected h1 title, got %q", document.Title)
	}

	document, err = ParseHTML(`<html><body><h2>Only h2</h2><p>x</p></body></html>`)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if document.Title != "Only h2" {
		t.Fatalf("expected h2 title, got %q", document.Title)
	}
}

func TestFetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		switch request.URL.Path {
		case "/article":
			writer.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(writer, samplePage)
		case "/plain":
			writer.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(writer, "  raw notes  ")
		default:
			http.NotFound(writer, request)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{AllowPrivateNetworks: true})
	defer fetcher.Close()

	document, err := fetcher.FetchPage(context.Background(), server.URL+"/article")
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if document.Title != "Cell Biology Basics" || !strings.Contains(document.Text, "Mitochondria") {
		t.Fatalf("unexpected document %+v", document)
	}

	document, err = fetcher.FetchPage(context.Background(), server.URL+"/plain")
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if document.Text != "raw notes" {
		t.Fatalf("unexpected plain text %q", document.Text)
	}

	if _, err := fetcher.FetchPage(context.Background(), server.URL+"/missing"); !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("expected remote failure, got %v", err)
	}
	if _, err := fetcher.FetchPage(context.Background(), "ftp://example.com/file"); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected invalid url error, got %v", err)
	}
}

func TestFetchPageBlocksPrivateAddressesByDefault(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		hits++
		_, _ = io.WriteString(writer, samplePage)
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{})
	defer fetcher.Close()

	_, err := fetcher.FetchPage(context.Background(), server.URL+"/article")
	if !errors.Is(err, ErrRemoteFailure) || !errors.Is(err, ErrBlockedAddress) {
		t.Fatalf("expected blocked address failure, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("expected no request to reach the server, got %d", hits)
	}
}

func TestFetchPageRejectsOversizedBody(t *testing.T) {
	chunk := strings.Repeat("a", 1024)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/plain")
		for index := 0; index < 256; index++ {
			if _, err := io.WriteString(writer, chunk); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{AllowPrivateNetworks: true, MaxBytes: 64 << 10})
	defer fetcher.Close()

	_, err := fetcher.FetchPage(context.Background(), server.URL+"/huge")
	if !errors.Is(err, ErrRemoteFailure) {
		t.Fatalf("expected remote failure for oversized page, got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size limit message, got %v", err)
	}
}

func TestGuardPublicAddress(t *testing.T) {
	testCases := []struct {
		name    string
		address string
		blocked bool
	}{
		{name: "public ipv4", address: "93.184.216.34:443", blocked: false},
		{name: "public ipv6", address: "[2606:2800:220:1:248:1893:25c8:1946]:443", blocked: false},
		{name: "loopback", address: "127.0.0.1:80", blocked: true},
		{name: "ipv6 loopback", address: "[::1]:80", blocked: true},
		{name: "private", address: "10.1.2.3:80", blocked: true},
		{name: "private class c", address: "192.168.0.10:8080", blocked: true},
		{name: "link local metadata", address: "169.254.169.254:80", blocked: true},
		{name: "unspecified", address: "0.0.0.0:80", blocked: true},
		{name: "mapped loopback", address: "[::ffff:127.0.0.1]:80", blocked: true},
		{name: "unique local", address: "[fd00::1]:80", blocked: true},
		{name: "malformed", address: "not-an-address", blocked: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := guardPublicAddress("tcp", testCase.address, nil)
			if testCase.blocked && !errors.Is(err, ErrBlockedAddress) {
				t.Fatalf("expected %s to be blocked, got %v", testCase.address, err)
			}
			if !testCase.blocked && err != nil {
				t.Fatalf("expected %s to be allowed, got %v", testCase.address, err)
			}
		})
	}
}

type stubTranscriber struct {
	text     string
	err      error
	fileName string
	audio    string
}

func (s *stubTranscriber) Transcribe(ctx context.Context, fileName string, audio io.Reader) (string, error) {
	s.fileName = fileName
	content, _ := io.ReadAll(audio)
	s.audio = string(content)
	return s.text, s.err
}

func TestExtractDispatchesBySourceType(t *testing.T) {
	transcriber := &stubTranscriber{text: "Today we cover photosynthesis."}
	extractor := NewExtractor(ExtractorConfig{Transcriber: transcriber})

	document, err := extractor.Extract(context.Background(), Input{Type: SourceText, Text: "  pasted notes "})
	if err != nil || document.Text != "pasted notes" {
		t.Fatalf("unexpected text extraction %+v, %v", document, err)
	}

	document, err = extractor.Extract(context.Background(), Input{Type: SourceYouTube, Transcript: "video captions"})
	if err != nil || document.Text != "video captions" {
		t.Fatalf("unexpected youtube extraction %+v, %v", document, err)
	}

	document, err = extractor.Extract(context.Background(), Input{Type: SourceAudio, FileName: "lecture.m4a", File: []byte("audio-bytes")})
	if err != nil || document.Text != "Today we cover photosynthesis." {
		t.Fatalf("unexpected audio extraction %+v, %v", document, err)
	}
	if transcriber.fileName != "lecture.m4a" || transcriber.audio != "audio-bytes" {
		t.Fatalf("unexpected transcriber input %q %q", transcriber.fileName, transcriber.audio)
	}
}

func TestExtractErrors(t *testing.T) {
	testCases := []struct {
		name        string
		transcriber llm.Transcriber
		input       Input
		expected    error
	}{
		{name: "unknown-type", input: Input{Type: "podcast"}, expected: ErrUnsupportedSource},
		{name: "text-missing", input: Input{Type: SourceText, Text: "   "}, expected: ErrMissingInput},
		{name: "website-missing-url", input: Input{Type: SourceWebsite}, expected: ErrMissingInput},
		{name: "pdf-missing-file", input: Input{Type: SourcePDF}, expected: ErrMissingInput},
		{name: "pdf-garbage", input: Input{Type: SourcePDF, File: []byte("not a pdf")}, expected: ErrUnreadableDocument},
		{
			name:        "audio-upstream-failure",
			transcriber: &stubTranscriber{err: llm.ErrUpstream},
			input:       Input{Type: SourceAudio, File: []byte("x")},
			expected:    ErrRemoteFailure,
		},
		{
			name:        "audio-missing-key",
			transcriber: &stubTranscriber{err: llm.ErrMissingAPIKey},
			input:       Input{Type: SourceAudio, File: []byte("x")},
			expected:    llm.ErrMissingAPIKey,
		},
		{
			name:        "audio-empty-transcript",
			transcriber: &stubTranscriber{text: "  "},
			input:       Input{Type: SourceAudio, File: []byte("x")},
			expected:    ErrEmptyContent,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			extractor := NewExtractor(ExtractorConfig{Transcriber: testCase.transcriber})
			_, err := extractor.Extract(context.Background(), testCase.input)
			if !errors.Is(err, testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
}

func TestParseSourceType(t *testing.T) {
	sourceType, err := ParseSourceType(" Website ")
	if err != nil || sourceType != SourceWebsite {
		t.Fatalf("unexpected parse result %q, %v", sourceType, err)
	}
	if _, err := ParseSourceType("podcast"); !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("expected unsupported source error, got %v", err)
	}
}
