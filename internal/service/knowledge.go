package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/healthrag-go/internal/retrieval"
)

// KnowledgeService manages the knowledge index.
type KnowledgeService struct {
	retriever *retrieval.Retriever
	logger    *slog.Logger
}

// NewKnowledgeService creates a knowledge service.
func NewKnowledgeService(r *retrieval.Retriever, logger *slog.Logger) *KnowledgeService {
	return &KnowledgeService{retriever: r, logger: logger}
}

// IngestResult summarizes an ingestion.
type IngestResult struct {
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
	Total  int    `json:"total"`
}

// Ingest adds a knowledge file or every markdown file of a directory.
// Missing paths and empty files add nothing.
func (s *KnowledgeService) Ingest(ctx context.Context, path string) (IngestResult, error) {
	n, err := s.retriever.Ingest(ctx, path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest %s: %w", path, err)
	}
	s.logger.Info("knowledge ingested", "path", path, "chunks", n)
	return IngestResult{Path: path, Chunks: n, Total: s.retriever.Count()}, nil
}

// AddTexts indexes raw passages.
func (s *KnowledgeService) AddTexts(ctx context.Context, texts []string) (IngestResult, error) {
	var docs []string
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			docs = append(docs, t)
		}
	}
	if err := s.retriever.AddDocuments(ctx, docs); err != nil {
		return IngestResult{}, fmt.Errorf("add documents: %w", err)
	}
	return IngestResult{Chunks: len(docs), Total: s.retriever.Count()}, nil
}

// Search returns the closest passages to query. topK <= 0 uses the
// configured default.
func (s *KnowledgeService) Search(ctx context.Context, query string, topK int) ([]retrieval.Hit, error) {
	hits, err := s.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	return hits, nil
}

// Count returns the number of indexed passages.
func (s *KnowledgeService) Count() int {
	return s.retriever.Count()
}
