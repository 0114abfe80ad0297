// Package payload turns raw model completions into validated structured values.
package payload

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/textutil"
)

var (
	// ErrInvalidPayload indicates that no JSON object could be recovered from the completion.
	ErrInvalidPayload = errors.New("payload: completion is not a json object")
	// ErrSchemaMismatch indicates that the recovered object does not satisfy the expected shape.
	ErrSchemaMismatch = errors.New("payload: schema mismatch")
)

// ExtractObject recovers a JSON object from model output.
// The raw text is parsed directly first; failing that, code fences are stripped and the
// substring between the first '{' and the last '}' is parsed.
func ExtractObject(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if isObject(trimmed) {
		return json.RawMessage(trimmed), nil
	}

	unfenced := textutil.StripCodeFence(trimmed)
	start := strings.Index(unfenced, "{")
	end := strings.LastIndex(unfenced, "}")
	if start < 0 || end <= start {
		return nil, ErrInvalidPayload
	}
	candidate := unfenced[start : end+1]
	if !isObject(candidate) {
		return nil, ErrInvalidPayload
	}
	return json.RawMessage(candidate), nil
}

func isObject(text string) bool {
	if !strings.HasPrefix(text, "{") {
		return false
	}
	var probe map[string]json.RawMessage
	return json.Unmarshal([]byte(text), &probe) == nil
}
