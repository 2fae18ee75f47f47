package structuring

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/raphaelgruber/healthrag-go/internal/models"
)

// FixtureModel is reported as the model name of the fixture generator.
const FixtureModel = "fixture-structuring"

const maxComplaintRunes = 200

// symptomLexicon is scanned in order; the first matches win.
var symptomLexicon = []string{
	"chest tightness",
	"chest pain",
	"shortness of breath",
	"fatigue",
	"headache",
	"fever",
	"cough",
	"sore throat",
	"nausea",
	"vomiting",
	"dizziness",
	"back pain",
	"rash",
	"insomnia",
	"anxiety",
}

// Fixture is the deterministic, offline generator.
type Fixture struct{}

// Generate returns a fixed-shape record derived only from rec.
func (Fixture) Generate(_ context.Context, rec *models.IntakeRecord) (string, error) {
	out := map[string]any{
		"chief_complaint": truncateRunes(rec.RawText, maxComplaintRunes),
		"symptoms":        matchSymptoms(rec.RawText),
		"duration":        "unspecified",
		"severity":        "unknown",
		"additional_context": map[string]any{
			"source":     string(rec.Source),
			"input_type": string(rec.InputType),
		},
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

func matchSymptoms(text string) []string {
	lowered := strings.ToLower(text)
	found := []string{}
	for _, s := range symptomLexicon {
		if strings.Contains(lowered, s) {
			found = append(found, s)
		}
	}
	return found
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
