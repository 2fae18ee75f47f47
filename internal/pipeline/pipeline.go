// Package pipeline sequences intake, structuring, optional retrieval and
// output, and builds the execution trace.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/raphaelgruber/healthrag-go/internal/config"
	"github.com/raphaelgruber/healthrag-go/internal/intake"
	"github.com/raphaelgruber/healthrag-go/internal/llm"
	"github.com/raphaelgruber/healthrag-go/internal/metrics"
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/report"
	"github.com/raphaelgruber/healthrag-go/internal/retrieval"
	"github.com/raphaelgruber/healthrag-go/internal/safety"
)

// Structurer runs the structuring stage.
type Structurer interface {
	Run(ctx context.Context, rec *models.IntakeRecord) (models.StructuredRecord, error)
}

// RetrievalAgent runs the optional retrieval stage.
type RetrievalAgent interface {
	Retrieve(ctx context.Context, structured models.StructuredRecord, in *models.IntakeRecord, topK int) (retrieval.Result, error)
}

// Reporter runs the output stage.
type Reporter interface {
	Run(ctx context.Context, structured models.StructuredRecord, chunks []retrieval.Chunk) (*models.Report, safety.Audit, error)
}

// Recorder persists successful runs.
type Recorder interface {
	SaveRecord(ctx context.Context, rec *models.HealthRecord) error
}

// Breaker and deadline defaults for the retrieval stage.
const (
	breakerFailures  = 5
	breakerCooldown  = 30 * time.Second
	retrievalTimeout = 2 * time.Second
)

// Pipeline is safe for concurrent use; all per-run state lives in Run.
type Pipeline struct {
	cfg        *config.Config
	intake     *intake.Processor
	structurer Structurer
	retriever  RetrievalAgent
	reporter   Reporter
	recorder   Recorder
	breaker    *gobreaker.CircuitBreaker
	fatal      atomic.Bool
	metrics    *metrics.Collector
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRetriever enables the retrieval stage when cfg.EnableRAG is set.
func WithRetriever(r RetrievalAgent) Option {
	return func(p *Pipeline) { p.retriever = r }
}

// WithRecorder persists successful runs when cfg.EnablePersistence is set.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithMetrics records stage timings and run outcomes.
func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) { p.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithBreakerSettings replaces the retrieval circuit breaker settings.
func WithBreakerSettings(s gobreaker.Settings) Option {
	return func(p *Pipeline) { p.breaker = gobreaker.NewCircuitBreaker(s) }
}

// New creates a pipeline. cfg is read, never modified.
func New(cfg *config.Config, structurer Structurer, reporter Reporter, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		structurer: structurer,
		reporter:   reporter,
		logger:     slog.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.intake = intake.NewProcessor(p.logger)
	if p.breaker == nil {
		p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "retrieval",
			MaxRequests: 1,
			Timeout:     breakerCooldown,
			// Provider errors retrying cannot fix open the breaker at once.
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return p.fatal.Swap(false) || counts.ConsecutiveFailures >= breakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				p.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return p
}

// RetrievalEnabled reports whether runs attempt retrieval.
func (p *Pipeline) RetrievalEnabled() bool {
	return p.cfg.EnableRAG && p.retriever != nil
}

// Run processes one raw statement. On a fatal fault the returned error is a
// *Error whose Trace is the returned trace.
func (p *Pipeline) Run(ctx context.Context, raw string, meta intake.Meta) (*Trace, error) {
	t := newTrace(uuid.NewString())
	log := p.logger.With("trace_id", t.TraceID)

	in := timed(p, metrics.OpIntake, func() result[*models.IntakeRecord] {
		rec, err := p.intake.Process(raw, meta)
		if err != nil {
			return fail[*models.IntakeRecord](KindIntakeInvalid, StageIntake, err)
		}
		return ok(rec)
	})
	if in.failed() {
		return p.abort(log, t, in.fault)
	}
	t.Intake = in.val

	st := timed(p, metrics.OpStructuring, func() result[models.StructuredRecord] {
		s, err := p.structurer.Run(ctx, in.val)
		if err != nil {
			return fail[models.StructuredRecord](KindStructuringFailed, StageStructuring, err)
		}
		return ok(s)
	})
	if st.failed() {
		return p.abort(log, t, st.fault)
	}
	t.Structured = st.val

	t.RAG.Enabled = p.RetrievalEnabled()
	if t.RAG.Enabled {
		t.RAG.TopK = p.cfg.RetrievalTopK
		rr := timed(p, metrics.OpRetrieval, func() result[retrieval.Result] {
			return p.retrieve(ctx, st.val, in.val)
		})
		if rr.failed() {
			msg := rr.fault.Err.Error()
			t.RAG.Error = &msg
			t.record(rr.fault)
			log.Warn("retrieval failed, continuing without context", "error", rr.fault.Err)
		} else {
			t.RAG.Query = rr.val.Query
			t.RAG.TopK = rr.val.K
			if rr.val.Chunks != nil {
				t.RAG.Chunks = rr.val.Chunks
			}
			t.RAG.Used = len(t.RAG.Chunks) > 0
		}
	}

	var audit safety.Audit
	out := timed(p, metrics.OpOutput, func() result[*models.Report] {
		rep, au, err := p.reporter.Run(ctx, st.val, t.RAG.Chunks)
		audit = au
		if err != nil {
			return fail[*models.Report](outputKind(err), StageOutput, err)
		}
		return ok(rep)
	})
	if out.failed() {
		if out.fault.Kind == KindUnsafeContentBlocked {
			t.Safety = &audit
		}
		return p.abort(log, t, out.fault)
	}
	t.Report = out.val
	t.Safety = &audit
	t.Success = true
	if p.metrics != nil {
		p.metrics.RecordRun(true)
	}
	log.Info("pipeline complete", "rag_used", t.RAG.Used, "severity", audit.Severity, "actions", audit.Actions)

	p.persist(ctx, log, t)
	return t, nil
}

// abort records the fault and returns it with the trace attached.
func (p *Pipeline) abort(log *slog.Logger, t *Trace, f *Error) (*Trace, error) {
	t.record(f)
	f.Trace = t
	if p.metrics != nil {
		p.metrics.RecordRun(false)
	}
	log.Warn("pipeline failed", "stage", f.Stage, "kind", f.Kind, "error", f.Err)
	return t, f
}

// retrieve runs the agent behind the circuit breaker and a deadline. The
// deadline holds even when the agent ignores cancellation.
func (p *Pipeline) retrieve(ctx context.Context, structured models.StructuredRecord, in *models.IntakeRecord) result[retrieval.Result] {
	v, err := p.breaker.Execute(func() (interface{}, error) {
		res, err := p.retrieveWithTimeout(ctx, structured, in)
		if errors.Is(err, llm.ErrFatalAPI) {
			p.fatal.Store(true)
		}
		return res, err
	})
	if err != nil {
		return fail[retrieval.Result](KindRetrievalFailed, StageRetrieval, err)
	}
	return ok(v.(retrieval.Result))
}

func (p *Pipeline) retrieveWithTimeout(ctx context.Context, structured models.StructuredRecord, in *models.IntakeRecord) (retrieval.Result, error) {
	timeout := p.cfg.RetrievalTimeout
	if timeout <= 0 {
		timeout = retrievalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res retrieval.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("retrieval panic: %v", r)}
			}
		}()
		res, err := p.retriever.Retrieve(ctx, structured, in, p.cfg.RetrievalTopK)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return retrieval.Result{}, fmt.Errorf("retrieval timed out after %s: %w", timeout, ctx.Err())
	}
}

// persist stores a successful run. Faults are recorded, never returned.
func (p *Pipeline) persist(ctx context.Context, log *slog.Logger, t *Trace) {
	if !p.cfg.EnablePersistence || p.recorder == nil {
		return
	}

	start := time.Now()
	rec, err := buildRecord(t, p.cfg.PipelineVersion, p.now())
	if err == nil {
		err = p.recorder.SaveRecord(ctx, rec)
	}
	if err != nil {
		t.record(&Error{Kind: KindPersistenceFailed, Stage: StagePersistence, Err: err})
		if p.metrics != nil {
			p.metrics.RecordError(metrics.OpPersistence)
		}
		log.Warn("persistence failed", "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.RecordTiming(metrics.OpPersistence, time.Since(start))
	}
	log.Debug("record persisted", "record_id", rec.ID)
}

func outputKind(err error) Kind {
	var blocked *safety.BlockedError
	switch {
	case errors.As(err, &blocked):
		return KindUnsafeContentBlocked
	case errors.Is(err, report.ErrSchemaInvalid):
		return KindOutputSchemaInvalid
	default:
		return KindOutputFailed
	}
}

// timed runs one stage and reports its duration or failure.
func timed[T any](p *Pipeline, op string, stage func() result[T]) result[T] {
	start := time.Now()
	r := stage()
	if p.metrics != nil {
		if r.failed() {
			p.metrics.RecordError(op)
		} else {
			p.metrics.RecordTiming(op, time.Since(start))
		}
	}
	return r
}
