// Package service builds the pipeline and its collaborators from Config and
// exposes the operations shared by the HTTP, MCP and CLI front ends.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/healthrag-go/internal/config"
	"github.com/raphaelgruber/healthrag-go/internal/db"
	"github.com/raphaelgruber/healthrag-go/internal/embedding"
	"github.com/raphaelgruber/healthrag-go/internal/llm"
	"github.com/raphaelgruber/healthrag-go/internal/metrics"
	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/pipeline"
	"github.com/raphaelgruber/healthrag-go/internal/report"
	"github.com/raphaelgruber/healthrag-go/internal/retrieval"
	"github.com/raphaelgruber/healthrag-go/internal/store"
	"github.com/raphaelgruber/healthrag-go/internal/structuring"
	"github.com/raphaelgruber/healthrag-go/internal/vectorstore"
)

// App holds every long-lived collaborator. Only the vector index is mutated
// after startup, and only through Knowledge.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Collector
	Pipeline  *pipeline.Pipeline
	Retriever *retrieval.Retriever
	Knowledge *KnowledgeService
	Reports   *ReportService
	// Records is nil when persistence is disabled.
	Records   RecordStore

	closers []func(context.Context) error
}

// RecordStore persists and reads health records. Both the SQLite store and
// the SurrealDB client satisfy it.
type RecordStore interface {
	pipeline.Recorder
	GetRecord(ctx context.Context, id string) (*models.HealthRecord, error)
	ListRecords(ctx context.Context, limit int) ([]models.HealthRecord, error)
	Count(ctx context.Context) (int, error)
}

// Option configures New.
type Option func(*options)

type options struct {
	metrics  *metrics.Collector
	embedder embedding.Embedder
	text     llm.TextGenerator
}

// WithMetrics shares a collector, e.g. one mirrored to Prometheus.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithEmbedder overrides the configured embedding provider.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithTextGenerator overrides the configured model in model mode.
func WithTextGenerator(g llm.TextGenerator) Option {
	return func(o *options) { o.text = g }
}

// New wires the application. The returned App must be closed.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewCollector()
	}

	app := &App{Config: &cfg, Logger: logger, Metrics: o.metrics}

	emb := o.embedder
	if emb == nil {
		var err error
		emb, err = newEmbedder(cfg, o.metrics)
		if err != nil {
			return nil, err
		}
	}
	app.Retriever = retrieval.NewRetriever(emb, vectorstore.New(), cfg.RetrievalTopK, logger)
	app.Knowledge = NewKnowledgeService(app.Retriever, logger)

	if cfg.EnableRAG && cfg.KnowledgePath != "" {
		res, err := app.Knowledge.Ingest(ctx, cfg.KnowledgePath)
		if err != nil {
			return nil, fmt.Errorf("seed knowledge index: %w", err)
		}
		logger.Info("knowledge index seeded", "path", cfg.KnowledgePath, "chunks", res.Chunks)
	}

	structGen, reportGen, err := newGenerators(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	var reportOpts []report.Option
	reportOpts = append(reportOpts, report.WithLogger(logger))
	if !cfg.EnableSafetyGuard {
		logger.Warn("safety guard disabled")
		reportOpts = append(reportOpts, report.WithoutGuard())
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(o.metrics),
		pipeline.WithRetriever(retrieval.NewAgent(app.Retriever, cfg.EnableRAG)),
	}

	if cfg.EnablePersistence {
		rec, closeFn, err := newRecorder(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, closeFn)
		app.Records = rec
		pipeOpts = append(pipeOpts, pipeline.WithRecorder(rec))
	}

	app.Pipeline = pipeline.New(app.Config,
		structuring.NewAgent(structGen, logger),
		report.NewAgent(reportGen, cfg.PromptVersion, reportOpts...),
		pipeOpts...,
	)
	app.Reports = NewReportService(app.Pipeline, logger)

	logger.Info("application ready",
		"env", cfg.AppEnv,
		"llm_mode", cfg.LLMMode,
		"embedder", emb.Model(),
		"rag", cfg.EnableRAG,
		"persistence", cfg.EnablePersistence,
		"store", cfg.StoreBackend,
	)
	return app, nil
}

// Close releases the persistence backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		if err := c(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newEmbedder(cfg config.Config, collector *metrics.Collector) (embedding.Embedder, error) {
	switch cfg.EmbedProvider {
	case config.ProviderHash, "":
		return embedding.NewHashEmbedder(cfg.EmbedDimension), nil
	default:
		e, err := llm.NewEmbedder(cfg, collector)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		return e, nil
	}
}

func newGenerators(ctx context.Context, cfg config.Config, o options) (structuring.Generator, report.Generator, error) {
	switch cfg.LLMMode {
	case config.ModeFixture, "":
		return structuring.Fixture{}, report.Fixture{}, nil

	case config.ModeModel:
		gen := o.text
		if gen == nil {
			m, err := llm.NewModel(ctx, cfg, llm.WithRateLimit(cfg.LLMRateLimit), llm.WithMetrics(o.metrics))
			if err != nil {
				return nil, nil, fmt.Errorf("create model: %w", err)
			}
			gen = m
		}
		return structuring.NewModelBacked(gen), report.NewModelBacked(gen), nil

	default:
		return nil, nil, fmt.Errorf("unsupported llm mode: %s", cfg.LLMMode)
	}
}

func newRecorder(ctx context.Context, cfg config.Config, logger *slog.Logger) (RecordStore, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite, "":
		s, err := store.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func(context.Context) error { return s.Close() }, nil

	case config.StoreSurrealDB:
		c, err := db.NewClient(ctx, db.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect surrealdb: %w", err)
		}
		if err := c.InitSchema(ctx); err != nil {
			_ = c.Close(ctx)
			return nil, nil, err
		}
		return c, c.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}
