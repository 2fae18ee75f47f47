package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a completion carries no parseable JSON object.
var ErrNoJSON = errors.New("no valid JSON object in completion")

// ExtractJSONBlock returns text itself when it is valid JSON, otherwise the
// span from the first '{' to the last '}' if that span is valid JSON.
func ExtractJSONBlock(text string) (string, error) {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", ErrNoJSON
	}

	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", ErrNoJSON
	}
	return candidate, nil
}
