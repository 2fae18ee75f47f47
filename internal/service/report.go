package service

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/healthrag-go/internal/intake"
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/pipeline"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
)

// ReportRequest is the caller-facing form of one pipeline run.
type ReportRequest struct {
	RawText        string           `json:"raw_text"`
	Source         models.Source    `json:"source,omitempty"`
	InputType      models.InputType `json:"input_type,omitempty"`
	ConsentGranted bool             `json:"consent_granted"`
	UserID         string           `json:"user_id,omitempty"`
}

func (r ReportRequest) meta() intake.Meta {
	return intake.Meta{
		Source:         r.Source,
		InputType:      r.InputType,
		ConsentGranted: r.ConsentGranted,
		UserID:         r.UserID,
	}
}

// ReportService runs the pipeline and its standalone stages.
type ReportService struct {
	pipeline *pipeline.Pipeline
	intake   *intake.Processor
	logger   *slog.Logger
}

// NewReportService creates a report service.
func NewReportService(p *pipeline.Pipeline, logger *slog.Logger) *ReportService {
	return &ReportService{pipeline: p, intake: intake.NewProcessor(logger), logger: logger}
}

// Generate runs the full pipeline. The trace is returned even on failure.
func (s *ReportService) Generate(ctx context.Context, req ReportRequest) (*pipeline.Trace, error) {
	return s.pipeline.Run(ctx, req.RawText, req.meta())
}

// Intake validates a statement without running later stages.
func (s *ReportService) Intake(req ReportRequest) (*models.IntakeRecord, error) {
	return s.intake.Process(req.RawText, req.meta())
}

// Guard runs the safety guard over one text.
func (s *ReportService) Guard(text string) safety.Result {
	return safety.Guard(text)
}
