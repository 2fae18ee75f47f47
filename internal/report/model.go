package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/healthrag-go/internal/llm"
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/retrieval"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
)

// ModelBacked asks a language model to write the report.
type ModelBacked struct {
	llm llm.TextGenerator
}

// NewModelBacked wraps gen.
func NewModelBacked(gen llm.TextGenerator) *ModelBacked {
	return &ModelBacked{llm: gen}
}

// Generate implements Generator.
func (m *ModelBacked) Generate(ctx context.Context, structured models.StructuredRecord, chunks []retrieval.Chunk) (string, error) {
	sd, err := json.MarshalIndent(structured, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode structured input: %w", err)
	}

	var rules strings.Builder
	for _, r := range safety.Rules {
		rules.WriteString("- " + r + "\n")
	}

	systemPrompt := `You write short, educational health summaries for the person who described their symptoms.

Output a JSON object of the form:
{"report_sections": {"overview": "...", "symptom_analysis": "...", "clinical_insights": "...", "risk_summary": "...", "recommendations": "..."}, "input_context": "..."}

Every section must be a non-empty string. input_context is at most 200 characters.

Safety rules:
` + rules.String() + `
Return ONLY valid JSON. No explanations.`

	userPrompt := fmt.Sprintf(`----- STRUCTURED INPUT -----
%s
----- END INPUT -----
%s
Report JSON:`, sd, formatChunks(chunks))

	return m.llm.Generate(ctx, systemPrompt, userPrompt)
}

// Model implements Generator.
func (m *ModelBacked) Model() string {
	return m.llm.Model()
}

func formatChunks(chunks []retrieval.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n----- SUPPORTING CONTEXT -----\n")
	for i, c := range chunks {
		source := retrieval.DefaultSource
		if c.Source != nil {
			source = *c.Source
		}
		fmt.Fprintf(&sb, "[%d] (%s) %s\n", i+1, source, c.Text)
	}
	sb.WriteString("----- END CONTEXT -----\n")
	return sb.String()
}
