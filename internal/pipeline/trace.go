package pipeline

import (
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/retrieval"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
)

// Trace is the single artifact returned for every run, successful or not.
type Trace struct {
	TraceID    string                  `json:"trace_id"`
	Success    bool                    `json:"success"`
	Intake     *models.IntakeRecord    `json:"intake"`
	Structured models.StructuredRecord `json:"structured"`
	RAG        RAGTrace                `json:"rag"`
	Report     *models.Report          `json:"report"`
	Safety     *safety.Audit           `json:"safety"`
	Errors     []StageError            `json:"errors"`
}

// RAGTrace describes the retrieval attempt. Chunks is never nil.
type RAGTrace struct {
	Enabled bool              `json:"enabled"`
	Used    bool              `json:"used"`
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Chunks  []retrieval.Chunk `json:"chunks"`
	Error   *string           `json:"error"`
}

// StageError is one recorded fault, fatal or absorbed.
type StageError struct {
	Stage     string `json:"stage"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

func newTrace(id string) *Trace {
	return &Trace{
		TraceID: id,
		RAG:     RAGTrace{Chunks: []retrieval.Chunk{}},
		Errors:  []StageError{},
	}
}

func (t *Trace) record(f *Error) {
	t.Errors = append(t.Errors, StageError{
		Stage:     f.Stage,
		ErrorType: string(f.Kind),
		Message:   f.Err.Error(),
	})
}
