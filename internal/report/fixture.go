package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/retrieval"
)

// FixtureModel is reported as the model version of fixture reports.
const FixtureModel = "fixture-report"

const maxContextRunes = 200

// Fixture writes a deterministic report from the structured record alone.
// Its wording stays clear of every diagnosis and prescription pattern.
type Fixture struct{}

// Generate implements Generator.
func (Fixture) Generate(_ context.Context, structured models.StructuredRecord, chunks []retrieval.Chunk) (string, error) {
	complaint := structured.ChiefComplaint()

	overview := "The individual did not state a specific concern."
	if complaint != "" {
		overview = "The individual reports the following concern: " + complaint
	}

	symptoms := "No specific symptoms were extracted from the statement."
	if s := structured.Symptoms(); len(s) > 0 {
		symptoms = "Reported symptoms: " + strings.Join(s, ", ") + "."
	}
	if d := structured.Field("duration"); d != "" {
		symptoms += " Duration: " + d + "."
	}

	insights := "This summary offers general wellness information and is not a medical assessment."
	if n := len(chunks); n > 0 {
		insights += fmt.Sprintf(" %d reference passages from the knowledge base were considered.", n)
	}

	severity := structured.Field("severity")
	if severity == "" {
		severity = "unknown"
	}

	out := map[string]any{
		"report_sections": map[string]any{
			"overview":          overview,
			"symptom_analysis":  symptoms,
			"clinical_insights": insights,
			"risk_summary":      "Self-reported severity: " + severity + ". Symptoms that worsen or persist warrant attention from a healthcare professional.",
			"recommendations":   "Consider discussing these symptoms with a qualified healthcare professional. Seek urgent care if symptoms become severe or rapidly worsen.",
		},
	}
	if complaint != "" {
		out["input_context"] = truncateRunes(complaint, maxContextRunes)
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Model implements Generator.
func (Fixture) Model() string {
	return FixtureModel
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
