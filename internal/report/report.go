// Package report generates the narrative report, gates it through the safety
// guard and validates it against the report schema.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/healthrag-go/internal/llm"
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/retrieval"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
	"github.com/raphaelgruber/healthrag-go/internal/schema"
)

var (
	// ErrGeneration wraps failures of the underlying generator.
	ErrGeneration = errors.New("report generation failed")

	// ErrSchemaInvalid wraps unparseable or schema-invalid reports.
	ErrSchemaInvalid = errors.New("report schema invalid")
)

// Generator produces the raw JSON text of a report.
type Generator interface {
	Generate(ctx context.Context, structured models.StructuredRecord, chunks []retrieval.Chunk) (string, error)
	Model() string
}

// Agent runs the output stage.
type Agent struct {
	gen           Generator
	validator     *schema.Validator
	promptVersion string
	guard         bool
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithoutGuard skips the safety guard. Safety checks are then reported as
// not passed.
func WithoutGuard() Option {
	return func(a *Agent) { a.guard = false }
}

// WithClock overrides the generated_at clock.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// NewAgent creates an output agent with the guard enabled.
func NewAgent(gen Generator, promptVersion string, opts ...Option) *Agent {
	a := &Agent{
		gen:           gen,
		validator:     schema.MustNew(schema.ReportOutput),
		promptVersion: promptVersion,
		guard:         true,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Model names the generator backing this agent.
func (a *Agent) Model() string {
	return a.gen.Model()
}

// Run generates and gates one report. A blocked report returns a
// *safety.BlockedError together with the audit collected so far.
func (a *Agent) Run(ctx context.Context, structured models.StructuredRecord, chunks []retrieval.Chunk) (*models.Report, safety.Audit, error) {
	start := time.Now()
	text, err := a.gen.Generate(ctx, structured, chunks)
	latency := time.Since(start)
	if err != nil {
		return nil, safety.DefaultAudit(), fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	block, err := llm.ExtractJSONBlock(text)
	if err != nil {
		return nil, safety.DefaultAudit(), fmt.Errorf("%w: %w", ErrSchemaInvalid, err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(block), &doc); err != nil {
		return nil, safety.DefaultAudit(), fmt.Errorf("%w: %w", ErrSchemaInvalid, err)
	}
	if doc == nil {
		return nil, safety.DefaultAudit(), fmt.Errorf("%w: report is not an object", ErrSchemaInvalid)
	}

	// Safety and metadata blocks are owned by this stage, never the model.
	delete(doc, "safety_checks")
	delete(doc, "report_metadata")

	audit := safety.DefaultAudit()
	if a.guard {
		masked, au, err := safety.GuardDocument(doc)
		audit = au
		if err != nil {
			a.logger.Warn("report blocked by safety guard", "severity", au.Severity, "actions", au.Actions)
			return nil, audit, err
		}
		doc = masked.(map[string]any)
	}
	// Masking and guidance can push input_context past its limit.
	if ic, ok := doc["input_context"].(string); ok {
		doc["input_context"] = truncateRunes(ic, maxContextRunes)
	}

	doc["safety_checks"] = a.safetyChecks(audit)
	ms := float64(latency.Microseconds()) / 1000
	doc["report_metadata"] = map[string]any{
		"generated_at":   a.now().UTC().Format(time.RFC3339Nano),
		"model_version":  a.gen.Model(),
		"prompt_version": a.promptVersion,
		"latency_ms":     ms,
	}

	if err := a.validator.Validate(doc); err != nil {
		return nil, audit, fmt.Errorf("%w: %w", ErrSchemaInvalid, err)
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, audit, fmt.Errorf("%w: %w", ErrSchemaInvalid, err)
	}
	var out models.Report
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, audit, fmt.Errorf("%w: %w", ErrSchemaInvalid, err)
	}

	a.logger.Debug("report generated", "model", a.gen.Model(), "latency_ms", ms, "severity", audit.Severity)
	return &out, audit, nil
}

func (a *Agent) safetyChecks(audit safety.Audit) map[string]any {
	if !a.guard {
		return map[string]any{
			"diagnostic_check_passed": false,
			"phi_safe":                false,
			"compliance_notes":        "Safety guard disabled.",
			"events":                  []string{},
		}
	}

	checks := map[string]any{
		"diagnostic_check_passed": true,
		"phi_safe":                true,
		"events":                  audit.Actions,
	}

	var notes []string
	for _, act := range audit.Actions {
		switch act {
		case safety.ActionMaskPHI:
			notes = append(notes, "Identifying details were masked.")
		case safety.ActionEmergencyGuidance:
			notes = append(notes, "Emergency guidance was appended.")
		}
	}
	if len(notes) > 0 {
		checks["compliance_notes"] = strings.Join(notes, " ")
	}
	return checks
}
