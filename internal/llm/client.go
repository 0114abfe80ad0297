// Package llm talks to an OpenAI-compatible chat completion and transcription API.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	defaultBaseURL       = "https://api.openai.com/v1"
	chatCompletionsPath  = "/chat/completions"
	transcriptionsPath   = "/audio/transcriptions"
	responseFormatObject = "json_object"
)

var (
	// ErrMissingAPIKey indicates that neither OPENAI_API_KEY nor OPENAI_KEY is set.
	ErrMissingAPIKey = errors.New("llm: api key is not configured")
	// ErrEmptyResponse indicates a completion without content.
	ErrEmptyResponse = errors.New("llm: empty model response")
	// ErrUpstream indicates a transport failure or a non-2xx response from the provider.
	ErrUpstream = errors.New("llm: upstream request failed")
)

// APIKeyEnvVars lists the environment variables consulted for the provider key, in order.
var APIKeyEnvVars = []string{"OPENAI_API_KEY", "OPENAI_KEY"}

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a completion conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call.
type Request struct {
	System      string
	History     []Message
	User        string
	Temperature float64
	JSONMode    bool
}

// Completer produces a completion for a request.
type Completer interface {
	Complete(ctx context.Context, request Request) (string, error)
}

// Transcriber converts audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, fileName string, audio io.Reader) (string, error)
}

// Config wires the client.
type Config struct {
	BaseURL            string
	Model              string
	TranscriptionModel string
	MaxRetries         uint
	// APIKey resolves the provider key per request; defaults to the environment lookup.
	APIKey func() string
	Logger *zap.Logger
}

// Client implements Completer and Transcriber over resty.
type Client struct {
	httpClient         *resty.Client
	model              string
	transcriptionModel string
	maxRetries         uint
	apiKey             func() string
	logger             *zap.Logger
}

// NewClient constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiKey := cfg.APIKey
	if apiKey == nil {
		apiKey = EnvironmentAPIKey
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseURL)

	return &Client{
		httpClient:         httpClient,
		model:              cfg.Model,
		transcriptionModel: cfg.TranscriptionModel,
		maxRetries:         cfg.MaxRetries,
		apiKey:             apiKey,
		logger:             logger,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.httpClient.Close()
}

// Model returns the completion model id.
func (c *Client) Model() string {
	return c.model
}

// EnvironmentAPIKey reads the provider key from the process environment.
func EnvironmentAPIKey() string {
	for _, name := range APIKeyEnvVars {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return ""
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    Role   `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Complete sends the request to the chat completions endpoint and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, request Request) (string, error) {
	apiKey := c.apiKey()
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}

	messages := make([]Message, 0, len(request.History)+2)
	if request.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: request.System})
	}
	messages = append(messages, request.History...)
	if request.User != "" {
		messages = append(messages, Message{Role: RoleUser, Content: request.User})
	}
	body := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: request.Temperature,
	}
	if request.JSONMode {
		body.ResponseFormat = &responseFormat{Type: responseFormatObject}
	}

	var content string
	err := c.withRetry(ctx, "complete", func() error {
		response, err := c.httpClient.R().
			SetContext(ctx).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			SetResult(&chatCompletionResponse{}).
			Post(chatCompletionsPath)
		if err != nil {
			return transportError(ctx, err)
		}
		if response.IsError() {
			return statusError(response.StatusCode(), response.String())
		}
		result, ok := response.Result().(*chatCompletionResponse)
		if !ok || result == nil || len(result.Choices) == 0 {
			return retry.Unrecoverable(ErrEmptyResponse)
		}
		text := strings.TrimSpace(result.Choices[0].Message.Content)
		if text == "" {
			return retry.Unrecoverable(ErrEmptyResponse)
		}
		content = text
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// Transcribe uploads audio to the transcription endpoint and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, fileName string, audio io.Reader) (string, error) {
	apiKey := c.apiKey()
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if strings.TrimSpace(c.transcriptionModel) == "" {
		return "", fmt.Errorf("llm: transcription model is not configured")
	}
	// the reader is consumed by the first attempt, so transcription is never retried
	response, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetMultipartFormData(map[string]string{"model": c.transcriptionModel}).
		SetFileReader("file", fileName, audio).
		SetResult(&transcriptionResponse{}).
		Post(transcriptionsPath)
	if err != nil {
		return "", transportError(ctx, err)
	}
	if response.IsError() {
		return "", statusError(response.StatusCode(), response.String())
	}
	result, ok := response.Result().(*transcriptionResponse)
	if !ok || result == nil || strings.TrimSpace(result.Text) == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(result.Text), nil
}

func (c *Client) withRetry(ctx context.Context, operation string, attempt func() error) error {
	attemptNumber := 0
	return retry.Do(
		func() error {
			attemptNumber++
			err := attempt()
			if err != nil && attemptNumber <= int(c.maxRetries) {
				c.logger.Debug("llm attempt failed",
					zap.String("operation", operation),
					zap.Int("attempt", attemptNumber),
					zap.Error(err),
				)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries+1),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return retry.Unrecoverable(fmt.Errorf("%w: %w", ErrUpstream, ctxErr))
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}

// statusError keeps rate limits and server errors retryable; other statuses are final.
func statusError(status int, body string) error {
	err := fmt.Errorf("%w: status %d: %s", ErrUpstream, status, truncate(body, 512))
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return err
	}
	return retry.Unrecoverable(err)
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
