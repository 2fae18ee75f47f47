package structuring

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/healthrag-go/internal/llm"
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
)

// ModelBacked asks a language model to structure the statement.
type ModelBacked struct {
	llm llm.TextGenerator
}

// NewModelBacked wraps gen.
func NewModelBacked(gen llm.TextGenerator) *ModelBacked {
	return &ModelBacked{llm: gen}
}

// Generate implements Generator.
func (m *ModelBacked) Generate(ctx context.Context, rec *models.IntakeRecord) (string, error) {
	systemPrompt := `You are a clinical intake assistant. Convert the user's health statement into a JSON object.

Fields:
- chief_complaint (string, required): the main concern in the user's own words
- symptoms (array of strings, required): individual symptoms, lowercase
- duration, onset, severity, context, additional_notes (strings, optional)

Rules:
` + bulletList(safety.Rules) + `

Return ONLY valid JSON. No explanations.`

	userPrompt := fmt.Sprintf(`Source: %s
Input type: %s

Statement:
%s

JSON:`, rec.Source, rec.InputType, rec.RawText)

	return m.llm.Generate(ctx, systemPrompt, userPrompt)
}

// Model implements Generator.
func (m *ModelBacked) Model() string {
	return m.llm.Model()
}

func bulletList(items []string) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- ")
		sb.WriteString(it)
	}
	return sb.String()
}
