package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/healthrag-go/internal/config"
	"github.com/raphaelgruber/healthrag-go/internal/embedding"
	"github.com/raphaelgruber/healthrag-go/internal/intake"
	"github.com/raphaelgruber/healthrag-go/internal/llm"
	"github.com/raphaelgruber/healthrag-go/internal/metrics"
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/report"
	"github.com/raphaelgruber/healthrag-go/internal/retrieval"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
	"github.com/raphaelgruber/healthrag-go/internal/structuring"
	"github.com/raphaelgruber/healthrag-go/internal/vectorstore"
)

const chestText = "Feeling chest tightness and fatigue for 3 days."

func testConfig(rag bool) *config.Config {
	cfg := config.Defaults()
	cfg.EnableRAG = rag
	cfg.EnablePersistence = false
	cfg.RetrievalTimeout = 500 * time.Millisecond
	return &cfg
}

func fixturePipeline(cfg *config.Config, opts ...Option) *Pipeline {
	return New(cfg,
		structuring.NewAgent(structuring.Fixture{}, nil),
		report.NewAgent(report.Fixture{}, cfg.PromptVersion),
		opts...,
	)
}

type countingStructurer struct {
	calls atomic.Int32
	err   error
}

func (c *countingStructurer) Run(ctx context.Context, rec *models.IntakeRecord) (models.StructuredRecord, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return structuring.NewAgent(structuring.Fixture{}, nil).Run(ctx, rec)
}

type failingAgent struct {
	calls atomic.Int32
}

func (f *failingAgent) Retrieve(context.Context, models.StructuredRecord, *models.IntakeRecord, int) (retrieval.Result, error) {
	f.calls.Add(1)
	return retrieval.Result{}, errors.New("retrieval exploded")
}

type fatalAgent struct {
	calls atomic.Int32
}

func (f *fatalAgent) Retrieve(context.Context, models.StructuredRecord, *models.IntakeRecord, int) (retrieval.Result, error) {
	f.calls.Add(1)
	return retrieval.Result{}, fmt.Errorf("embed query: %w: invalid api key", llm.ErrFatalAPI)
}

type stubAgent struct {
	result retrieval.Result
}

func (s stubAgent) Retrieve(context.Context, models.StructuredRecord, *models.IntakeRecord, int) (retrieval.Result, error) {
	return s.result, nil
}

type slowAgent struct{}

func (slowAgent) Retrieve(context.Context, models.StructuredRecord, *models.IntakeRecord, int) (retrieval.Result, error) {
	// Ignores cancellation on purpose.
	time.Sleep(2 * time.Second)
	return retrieval.Result{Chunks: []retrieval.Chunk{{Text: "late"}}}, nil
}

// stuckAgent outlasts the default retrieval deadline.
type stuckAgent struct{}

func (stuckAgent) Retrieve(context.Context, models.StructuredRecord, *models.IntakeRecord, int) (retrieval.Result, error) {
	time.Sleep(5 * time.Second)
	return retrieval.Result{}, nil
}

type panickingAgent struct{}

func (panickingAgent) Retrieve(context.Context, models.StructuredRecord, *models.IntakeRecord, int) (retrieval.Result, error) {
	panic("index corrupted")
}

type textGen struct{ out string }

func (g textGen) Generate(context.Context, string, string) (string, error) { return g.out, nil }
func (g textGen) Model() string                                            { return "stub" }

type memoryRecorder struct {
	mu      sync.Mutex
	records map[string]*models.HealthRecord
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{records: map[string]*models.HealthRecord{}}
}

func (m *memoryRecorder) SaveRecord(_ context.Context, rec *models.HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.records[rec.InputHash]; dup {
		return errors.New("duplicate input hash")
	}
	m.records[rec.InputHash] = rec
	return nil
}

func errorTypes(t *Trace) []string {
	out := make([]string, len(t.Errors))
	for i, e := range t.Errors {
		out[i] = e.ErrorType
	}
	return out
}

func TestRunWithoutRetrieval(t *testing.T) {
	p := fixturePipeline(testConfig(false), WithRetriever(&failingAgent{}))

	trace, err := p.Run(context.Background(), chestText, intake.Meta{ConsentGranted: true})
	require.NoError(t, err)

	assert.True(t, trace.Success)
	assert.False(t, trace.RAG.Enabled)
	assert.False(t, trace.RAG.Used)
	assert.NotNil(t, trace.RAG.Chunks)
	assert.Empty(t, trace.RAG.Chunks)
	assert.Nil(t, trace.RAG.Error)
	assert.Empty(t, trace.Errors)

	require.NotNil(t, trace.Report)
	overview := trace.Report.ReportSections.Overview
	assert.NotEmpty(t, overview)
	for _, banned := range []string{"you have", "diagnosed", "suffering from", "confirmed", "prescribed"} {
		assert.NotContains(t, strings.ToLower(overview), banned)
	}

	require.NotNil(t, trace.Safety)
	assert.True(t, trace.Safety.Allowed)
	assert.Equal(t, safety.SeverityLow, trace.Safety.Severity)
}

func TestRunTraceJSONShape(t *testing.T) {
	trace, err := fixturePipeline(testConfig(false)).Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)

	b, err := json.Marshal(trace)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	rag := doc["rag"].(map[string]any)
	assert.Equal(t, []any{}, rag["chunks"])
	assert.Nil(t, rag["error"])
	assert.NotNil(t, doc["safety"])
	assert.Equal(t, []any{}, doc["errors"])
}

func TestRunRetrievalFailureIsAbsorbed(t *testing.T) {
	agent := &failingAgent{}
	p := fixturePipeline(testConfig(true), WithRetriever(agent))

	trace, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)

	assert.True(t, trace.Success)
	assert.True(t, trace.RAG.Enabled)
	assert.False(t, trace.RAG.Used)
	assert.Empty(t, trace.RAG.Chunks)
	require.NotNil(t, trace.RAG.Error)
	assert.Contains(t, *trace.RAG.Error, "retrieval exploded")
	assert.Equal(t, []string{string(KindRetrievalFailed)}, errorTypes(trace))
	assert.NotNil(t, trace.Report)
	assert.EqualValues(t, 1, agent.calls.Load())
}

func TestRunRetrievalUsed(t *testing.T) {
	src := "kb"
	score := 0.9
	agent := stubAgent{result: retrieval.Result{
		Query:  "chest tightness",
		K:      3,
		Chunks: []retrieval.Chunk{{Text: "doc1", Source: &src, Score: &score}, {Text: "doc2", Source: &src, Score: &score}},
	}}

	trace, err := fixturePipeline(testConfig(true), WithRetriever(agent)).Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)

	assert.True(t, trace.RAG.Used)
	assert.Len(t, trace.RAG.Chunks, 2)
	assert.Equal(t, "chest tightness", trace.RAG.Query)
	assert.Equal(t, 3, trace.RAG.TopK)
	assert.Contains(t, trace.Report.ReportSections.ClinicalInsights, "2 reference passages")
}

func TestRunRetrievalEmptyResultNotUsed(t *testing.T) {
	agent := stubAgent{result: retrieval.Result{Query: "q", K: 3}}

	trace, err := fixturePipeline(testConfig(true), WithRetriever(agent)).Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)
	assert.False(t, trace.RAG.Used)
	assert.NotNil(t, trace.RAG.Chunks)
	assert.Nil(t, trace.RAG.Error)
}

func TestRunRealRetriever(t *testing.T) {
	ctx := context.Background()
	r := retrieval.NewRetriever(embedding.NewHashEmbedder(embedding.DefaultDimension), vectorstore.New(), 3, nil)
	require.NoError(t, r.AddDocuments(ctx, []string{"Rest and hydration help with tiredness.", "Stretching can ease muscle tension."}))

	cfg := testConfig(true)
	trace, err := fixturePipeline(cfg, WithRetriever(retrieval.NewAgent(r, true))).Run(ctx, chestText, intake.Meta{})
	require.NoError(t, err)
	assert.True(t, trace.RAG.Used)
	assert.Len(t, trace.RAG.Chunks, 2)
	assert.NotEmpty(t, trace.RAG.Query)
}

func TestRunRetrievalTimeout(t *testing.T) {
	cfg := testConfig(true)
	cfg.RetrievalTimeout = 50 * time.Millisecond

	start := time.Now()
	trace, err := fixturePipeline(cfg, WithRetriever(slowAgent{})).Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, trace.Success)
	assert.False(t, trace.RAG.Used)
	require.NotNil(t, trace.RAG.Error)
	assert.Contains(t, *trace.RAG.Error, "timed out")
}

func TestRunRetrievalPanicIsAbsorbed(t *testing.T) {
	trace, err := fixturePipeline(testConfig(true), WithRetriever(panickingAgent{})).Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)
	require.NotNil(t, trace.RAG.Error)
	assert.Contains(t, *trace.RAG.Error, "index corrupted")
}

func TestRunCircuitBreakerOpens(t *testing.T) {
	agent := &failingAgent{}
	p := fixturePipeline(testConfig(true),
		WithRetriever(agent),
		WithBreakerSettings(gobreaker.Settings{
			Name:    "retrieval-test",
			Timeout: time.Minute,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 2
			},
		}),
	)

	for range 3 {
		trace, err := p.Run(context.Background(), chestText, intake.Meta{})
		require.NoError(t, err)
		require.NotNil(t, trace.RAG.Error)
	}

	assert.EqualValues(t, 2, agent.calls.Load())

	trace, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)
	assert.Contains(t, *trace.RAG.Error, gobreaker.ErrOpenState.Error())
	assert.True(t, trace.Success)
}

func TestRunFatalProviderErrorOpensBreaker(t *testing.T) {
	agent := &fatalAgent{}
	p := fixturePipeline(testConfig(true), WithRetriever(agent))

	first, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)
	require.NotNil(t, first.RAG.Error)
	assert.Contains(t, *first.RAG.Error, "invalid api key")

	second, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)
	require.NotNil(t, second.RAG.Error)
	assert.Contains(t, *second.RAG.Error, gobreaker.ErrOpenState.Error())
	assert.True(t, second.Success)
	assert.EqualValues(t, 1, agent.calls.Load())
}

func TestRunRetrievalZeroTimeoutStillBounded(t *testing.T) {
	cfg := testConfig(true)
	cfg.RetrievalTimeout = 0

	start := time.Now()
	trace, err := fixturePipeline(cfg, WithRetriever(stuckAgent{})).Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 4*time.Second)
	assert.True(t, trace.Success)
	require.NotNil(t, trace.RAG.Error)
	assert.Contains(t, *trace.RAG.Error, "timed out")
}

func TestRunIntakeInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		meta intake.Meta
	}{
		{"empty", "", intake.Meta{}},
		{"too short", "sick", intake.Meta{ConsentGranted: true}},
		{"too long", strings.Repeat("x", intake.MaxLength+1), intake.Meta{ConsentGranted: true}},
		{"phi without consent", "My phone keeps ringing and I feel dizzy.", intake.Meta{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &countingStructurer{}
			p := New(testConfig(false), st, report.NewAgent(report.Fixture{}, "v1.0"))

			trace, err := p.Run(context.Background(), tt.raw, tt.meta)
			require.ErrorIs(t, err, KindIntakeInvalid)
			assert.ErrorIs(t, err, intake.ErrInvalid)
			assert.True(t, IsClientError(err))

			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Same(t, trace, perr.Trace)
			assert.Equal(t, StageIntake, perr.Stage)

			assert.False(t, trace.Success)
			assert.Nil(t, trace.Intake)
			assert.Equal(t, []string{string(KindIntakeInvalid)}, errorTypes(trace))
			assert.EqualValues(t, 0, st.calls.Load())
		})
	}
}

func TestRunPHIWithConsent(t *testing.T) {
	trace, err := fixturePipeline(testConfig(false)).Run(context.Background(), "My phone keeps ringing and I feel dizzy.", intake.Meta{ConsentGranted: true})
	require.NoError(t, err)
	assert.True(t, trace.Success)
	assert.True(t, trace.Intake.ContainsPHI)
}

func TestRunStructuringFailed(t *testing.T) {
	st := &countingStructurer{err: errors.New("model unavailable")}
	p := New(testConfig(true), st, report.NewAgent(report.Fixture{}, "v1.0"), WithRetriever(&failingAgent{}))

	trace, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.ErrorIs(t, err, KindStructuringFailed)
	assert.False(t, IsClientError(err))

	assert.False(t, trace.Success)
	assert.NotNil(t, trace.Intake)
	assert.Nil(t, trace.Structured)
	assert.NotNil(t, trace.RAG.Chunks)
	assert.Equal(t, []string{string(KindStructuringFailed)}, errorTypes(trace))
}

func TestRunUnsafeContentBlocked(t *testing.T) {
	blocked := `{"report_sections": {"overview": "Clinically this is confirmed.", "symptom_analysis": "a", "clinical_insights": "b", "risk_summary": "c", "recommendations": "Take 200 mg twice daily."}}`
	p := New(testConfig(true),
		structuring.NewAgent(structuring.Fixture{}, nil),
		report.NewAgent(report.NewModelBacked(textGen{out: blocked}), "v1.0"),
		WithRetriever(&failingAgent{}),
	)

	trace, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.ErrorIs(t, err, KindUnsafeContentBlocked)

	var be *safety.BlockedError
	require.ErrorAs(t, err, &be)

	assert.False(t, trace.Success)
	assert.Nil(t, trace.Report)
	require.NotNil(t, trace.Safety)
	assert.False(t, trace.Safety.Allowed)
	assert.Contains(t, trace.Safety.Actions, safety.ActionBlockDiagnosis)
	assert.Contains(t, trace.Safety.Actions, safety.ActionBlockPrescription)
	assert.NotNil(t, trace.Structured)
	assert.Equal(t, []string{string(KindRetrievalFailed), string(KindUnsafeContentBlocked)}, errorTypes(trace))
}

func TestRunOutputSchemaInvalid(t *testing.T) {
	p := New(testConfig(false),
		structuring.NewAgent(structuring.Fixture{}, nil),
		report.NewAgent(report.NewModelBacked(textGen{out: `{"report_sections": {"overview": "only this"}}`}), "v1.0"),
	)

	trace, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.ErrorIs(t, err, KindOutputSchemaInvalid)
	assert.ErrorIs(t, err, report.ErrSchemaInvalid)
	assert.False(t, trace.Success)
}

func TestRunPersistence(t *testing.T) {
	cfg := testConfig(false)
	cfg.EnablePersistence = true
	rec := newMemoryRecorder()
	p := fixturePipeline(cfg, WithRecorder(rec))

	first, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)
	assert.Empty(t, first.Errors)

	second, err := p.Run(context.Background(), "  "+chestText+"\n", intake.Meta{})
	require.NoError(t, err, "persistence faults never propagate")
	assert.True(t, second.Success)
	assert.Equal(t, []string{string(KindPersistenceFailed)}, errorTypes(second))

	require.Len(t, rec.records, 1)
	stored := rec.records[models.InputHash(chestText)]
	require.NotNil(t, stored)
	assert.Equal(t, first.TraceID, stored.TraceID)
	assert.Equal(t, cfg.PipelineVersion, stored.PipelineVersion)
	assert.Equal(t, first.Report.ReportSections.Overview, stored.ReportText)

	var audit safety.Audit
	require.NoError(t, json.Unmarshal(stored.SafetyAuditJSON, &audit))
	assert.True(t, audit.Allowed)
}

func TestRunPersistsMaskedIntake(t *testing.T) {
	cfg := testConfig(false)
	cfg.EnablePersistence = true
	rec := newMemoryRecorder()
	raw := "Chest pain since yesterday, reach me on 555-123-4567 please."

	trace, err := fixturePipeline(cfg, WithRecorder(rec)).Run(context.Background(), raw, intake.Meta{ConsentGranted: true})
	require.NoError(t, err)
	assert.Equal(t, raw, trace.Intake.RawText, "trace keeps the raw input")

	stored := rec.records[models.InputHash(raw)]
	require.NotNil(t, stored)
	assert.NotContains(t, string(stored.IntakeJSON), "555-123-4567")
	assert.Contains(t, string(stored.IntakeJSON), "[PHI_PHONE]")
	assert.NotContains(t, string(stored.StructuredOutputJSON), "555-123-4567")

	var in models.IntakeRecord
	require.NoError(t, json.Unmarshal(stored.IntakeJSON, &in))
	assert.Equal(t, trace.Intake.InputID, in.InputID)
	assert.True(t, trace.Intake.Timestamp.Equal(in.Timestamp))
}

func TestRunPersistenceDisabled(t *testing.T) {
	rec := newMemoryRecorder()
	_, err := fixturePipeline(testConfig(false), WithRecorder(rec)).Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)
	assert.Empty(t, rec.records)
}

func TestRunRecordsMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	p := fixturePipeline(testConfig(false), WithMetrics(collector))

	_, err := p.Run(context.Background(), chestText, intake.Meta{})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), "short", intake.Meta{})
	require.Error(t, err)

	snap := collector.Snapshot()
	assert.EqualValues(t, 2, snap.Runs)
	assert.EqualValues(t, 1, snap.FailedRuns)
	require.NotNil(t, snap.Intake)
	assert.EqualValues(t, 1, snap.Intake.Count)
	assert.EqualValues(t, 1, snap.Intake.Errors)
	require.NotNil(t, snap.Output)
	assert.EqualValues(t, 1, snap.Output.Count)
}

func TestErrorMatchesOnlyItsKind(t *testing.T) {
	err := error(&Error{Kind: KindOutputFailed, Stage: StageOutput, Err: errors.New("boom")})
	assert.ErrorIs(t, err, KindOutputFailed)
	assert.NotErrorIs(t, err, KindOutputSchemaInvalid)
	assert.Equal(t, "output stage: OutputFailed: boom", err.Error())
}
