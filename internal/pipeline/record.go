package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
)

// buildRecord flattens a successful trace into its persisted form. Intake and
// structured output are stored PHI-masked; the input hash covers the raw text.
func buildRecord(t *Trace, pipelineVersion string, now time.Time) (*models.HealthRecord, error) {
	if t.Intake == nil || t.Report == nil || t.Safety == nil {
		return nil, fmt.Errorf("trace %s is incomplete", t.TraceID)
	}

	in := *t.Intake
	in.RawText = safety.MaskPHI(in.RawText)
	intakeJSON, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode intake: %w", err)
	}
	structuredJSON, err := maskedJSON(t.Structured)
	if err != nil {
		return nil, fmt.Errorf("encode structured output: %w", err)
	}
	reportJSON, err := json.Marshal(t.Report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	auditJSON, err := json.Marshal(t.Safety)
	if err != nil {
		return nil, fmt.Errorf("encode safety audit: %w", err)
	}

	return &models.HealthRecord{
		ID:                   uuid.NewString(),
		TraceID:              t.TraceID,
		PipelineVersion:      pipelineVersion,
		IntakeJSON:           intakeJSON,
		StructuredOutputJSON: structuredJSON,
		ReportJSON:           reportJSON,
		ReportText:           t.Report.ReportSections.Overview,
		SafetyAuditJSON:      auditJSON,
		InputHash:            models.InputHash(t.Intake.RawText),
		CreatedAt:            now,
	}, nil
}

// maskedJSON encodes v with PHI masked in every string leaf.
func maskedJSON(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(safety.MaskDocument(doc))
}
