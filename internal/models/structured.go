package models

import (
	"fmt"
	"strings"
)

// ContextFields are the freeform structured fields used to build retrieval
// queries, in priority order.
var ContextFields = []string{"context", "duration", "onset", "additional_notes"}

// StructuredRecord is the decoded output of the structuring stage. Only
// chief_complaint and symptoms are required by the schema.
type StructuredRecord map[string]any

// ChiefComplaint returns the trimmed chief complaint or "".
func (s StructuredRecord) ChiefComplaint() string {
	return s.Field("chief_complaint")
}

// Symptoms returns the non-empty symptom entries, trimmed.
func (s StructuredRecord) Symptoms() []string {
	var out []string
	switch v := s["symptoms"].(type) {
	case []string:
		for _, item := range v {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if str := strings.TrimSpace(fmt.Sprint(item)); str != "" {
				out = append(out, str)
			}
		}
	}
	return out
}

// Field returns the trimmed string value of key, or "" when absent or not a string.
func (s StructuredRecord) Field(key string) string {
	if v, ok := s[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
