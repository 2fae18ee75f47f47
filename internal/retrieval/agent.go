package retrieval

import (
	"context"
	"strings"

	"github.com/raphaelgruber/healthrag-go/internal/models"
)

// Searcher is the lookup the agent delegates to.
type Searcher interface {
	Retrieve(ctx context.Context, text string, topK int) ([]Hit, error)
}

// Chunk is one retrieved passage handed to the output stage.
type Chunk struct {
	Text   string   `json:"text"`
	Source *string  `json:"source"`
	Score  *float64 `json:"score"`
}

// Result is the outcome of one retrieval attempt. Chunks is never nil.
type Result struct {
	Query  string  `json:"query"`
	Chunks []Chunk `json:"chunks"`
	K      int     `json:"k"`
}

// Agent turns structured records into retrieval queries.
type Agent struct {
	searcher Searcher
	enabled  bool
}

// NewAgent creates an agent. A disabled agent never calls the searcher.
func NewAgent(searcher Searcher, enabled bool) *Agent {
	return &Agent{searcher: searcher, enabled: enabled}
}

// BuildQuery joins, in priority order, the chief complaint, the symptoms and
// the context fields. The raw intake text is used only when all of those are
// empty.
func BuildQuery(structured models.StructuredRecord, intake *models.IntakeRecord) string {
	var parts []string

	if cc := structured.ChiefComplaint(); cc != "" {
		parts = append(parts, cc)
	}
	parts = append(parts, structured.Symptoms()...)
	for _, key := range models.ContextFields {
		if v := structured.Field(key); v != "" {
			parts = append(parts, v)
		}
	}

	if len(parts) == 0 && intake != nil {
		if raw := strings.TrimSpace(intake.RawText); raw != "" {
			parts = append(parts, raw)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Retrieve runs the query for structured. Searcher errors are returned as-is;
// the agent performs no fallback.
func (a *Agent) Retrieve(ctx context.Context, structured models.StructuredRecord, intake *models.IntakeRecord, topK int) (Result, error) {
	if !a.enabled {
		return Result{Query: "", Chunks: []Chunk{}, K: 0}, nil
	}

	query := BuildQuery(structured, intake)
	if query == "" {
		return Result{Query: "", Chunks: []Chunk{}, K: topK}, nil
	}

	hits, err := a.searcher.Retrieve(ctx, query, topK)
	if err != nil {
		return Result{}, err
	}

	chunks := make([]Chunk, len(hits))
	for i, h := range hits {
		source, score := h.Source, h.Score
		chunks[i] = Chunk{Text: h.Text, Source: &source, Score: &score}
	}
	return Result{Query: query, Chunks: chunks, K: topK}, nil
}
