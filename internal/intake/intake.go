// Package intake validates and normalizes raw user statements.
package intake

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/raphaelgruber/healthrag-go/internal/models"
)

// Length bounds on the trimmed raw text, in characters.
const (
	MinLength = 10
	MaxLength = 5000
)

// ErrInvalid is wrapped by every intake rejection.
var ErrInvalid = errors.New("invalid intake")

// phiKeywords is a first-pass heuristic, not a classifier.
var phiKeywords = []string{
	"name", "dob", "date of birth", "ssn", "id number",
	"address", "phone", "email", "patient",
}

// Meta carries the request attributes that accompany the raw text.
type Meta struct {
	Source         models.Source    `json:"source,omitempty"`
	InputType      models.InputType `json:"input_type,omitempty"`
	ConsentGranted bool             `json:"consent_granted"`
	UserID         string           `json:"user_id,omitempty"`
}

// Processor builds intake records.
type Processor struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewProcessor creates a processor. A nil logger uses slog.Default().
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ContainsPHI reports whether text mentions any PHI keyword.
func ContainsPHI(text string) bool {
	lowered := strings.ToLower(text)
	for _, k := range phiKeywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// Process validates raw and returns the normalized record. Consent is only
// required when the PHI heuristic fires.
func (p *Processor) Process(raw string, meta Meta) (*models.IntakeRecord, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		p.logger.Warn("rejected empty raw_text input")
		return nil, fmt.Errorf("%w: raw_text cannot be empty", ErrInvalid)
	}

	n := utf8.RuneCountInString(text)
	if n < MinLength {
		return nil, fmt.Errorf("%w: raw_text is too short to be meaningful (%d < %d chars)", ErrInvalid, n, MinLength)
	}
	if n > MaxLength {
		return nil, fmt.Errorf("%w: raw_text exceeds maximum length (%d chars)", ErrInvalid, MaxLength)
	}

	source, err := parseSource(meta.Source)
	if err != nil {
		return nil, err
	}
	inputType, err := parseInputType(meta.InputType)
	if err != nil {
		return nil, err
	}

	inputID := uuid.NewString()
	userID := meta.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	containsPHI := ContainsPHI(text)
	if containsPHI && !meta.ConsentGranted {
		p.logger.Warn("PHI detected without consent", "input_id", inputID)
		return nil, fmt.Errorf("%w: PHI detected but consent has not been granted", ErrInvalid)
	}

	rec := &models.IntakeRecord{
		InputID:        inputID,
		UserID:         userID,
		RawText:        text,
		Source:         source,
		InputType:      inputType,
		Timestamp:      p.now(),
		ContainsPHI:    containsPHI,
		ConsentGranted: meta.ConsentGranted,
	}

	p.logger.Info("intake accepted", "input_id", inputID, "source", source, "type", inputType, "phi", containsPHI)
	return rec, nil
}

func parseSource(s models.Source) (models.Source, error) {
	switch s {
	case "":
		return models.SourceWeb, nil
	case models.SourceWeb, models.SourceSMS, models.SourceVoice, models.SourceAPI, models.SourceEmail:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalid, s)
	}
}

func parseInputType(t models.InputType) (models.InputType, error) {
	switch t {
	case "":
		return models.InputChat, nil
	case models.InputChat, models.InputIntake, models.InputSurvey, models.InputReferral:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown input_type %q", ErrInvalid, t)
	}
}
