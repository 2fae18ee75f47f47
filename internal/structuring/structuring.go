// Package structuring turns an accepted intake record into a schema-valid
// structured record.
package structuring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/healthrag-go/internal/llm"
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/schema"
)

// ErrStructuring is wrapped by every structuring failure.
var ErrStructuring = errors.New("structuring failed")

// Failure classes, each wrapping ErrStructuring.
var (
	ErrJSONParsing      = fmt.Errorf("%w: json parsing", ErrStructuring)
	ErrSchemaValidation = fmt.Errorf("%w: schema validation", ErrStructuring)
	ErrLLMCall          = fmt.Errorf("%w: model call", ErrStructuring)
)

// Generator produces the raw JSON text of a structured record.
type Generator interface {
	Generate(ctx context.Context, rec *models.IntakeRecord) (string, error)
	Model() string
}

// Agent runs a Generator and validates its output.
type Agent struct {
	gen       Generator
	validator *schema.Validator
	logger    *slog.Logger
}

// NewAgent creates an agent. A nil logger uses slog.Default().
func NewAgent(gen Generator, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		gen:       gen,
		validator: schema.MustNew(schema.StructuredOutput),
		logger:    logger,
	}
}

// Model names the generator backing this agent.
func (a *Agent) Model() string {
	return a.gen.Model()
}

// Run structures rec. Every error wraps ErrStructuring.
func (a *Agent) Run(ctx context.Context, rec *models.IntakeRecord) (models.StructuredRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil intake record", ErrStructuring)
	}

	text, err := a.gen.Generate(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLLMCall, err)
	}

	block, err := llm.ExtractJSONBlock(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSONParsing, err)
	}

	var out models.StructuredRecord
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		// A valid JSON value that is not an object lands here.
		return nil, fmt.Errorf("%w: %w", ErrJSONParsing, err)
	}

	if err := a.validator.Validate(out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaValidation, err)
	}

	a.logger.Debug("structuring complete", "input_id", rec.InputID, "model", a.gen.Model(), "symptoms", len(out.Symptoms()))
	return out, nil
}
