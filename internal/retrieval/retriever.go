// Package retrieval couples an embedder with the vector index for semantic
// lookup, and builds retrieval queries from structured records.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/healthrag-go/internal/embedding"
	"github.com/raphaelgruber/healthrag-go/internal/parser"
	"github.com/raphaelgruber/healthrag-go/internal/vectorstore"
)

// DefaultSource is the provenance tag for hits whose origin the index does
// not track.
const DefaultSource = "knowledge_base"

// DefaultTopK is used when neither the caller nor the retriever sets a k.
const DefaultTopK = 3

// maxConcurrentFiles bounds parallel reads and embeddings during directory ingestion.
const maxConcurrentFiles = 4

// Hit is one ranked nearest-neighbour result.
type Hit struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Retriever embeds queries and documents and reads/writes the shared index.
type Retriever struct {
	embedder embedding.Embedder
	store    *vectorstore.Store
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a retriever. topK <= 0 uses DefaultTopK.
func NewRetriever(embedder embedding.Embedder, store *vectorstore.Store, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		topK:     topK,
		logger:   logger,
	}
}

// Count returns the number of indexed chunks.
func (r *Retriever) Count() int {
	return r.store.Count()
}

// Retrieve returns the topK chunks closest to text. Blank text returns an
// empty result without calling the embedder. topK <= 0 uses the retriever default.
func (r *Retriever) Retrieve(ctx context.Context, text string, topK int) ([]Hit, error) {
	query := strings.TrimSpace(text)
	if query == "" {
		return []Hit{}, nil
	}
	if topK <= 0 {
		topK = r.topK
	}

	start := time.Now()
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.store.Query(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]Hit, len(matches))
	for i, m := range matches {
		source := m.Source
		if source == "" {
			source = DefaultSource
		}
		hits[i] = Hit{Text: m.Text, Source: source, Score: m.Score}
	}

	r.logger.Debug("retrieval complete", "query_len", len(query), "top_k", topK, "hits", len(hits), "duration_ms", time.Since(start).Milliseconds())
	return hits, nil
}

// AddDocuments embeds docs in one batch and appends them to the index.
func (r *Retriever) AddDocuments(ctx context.Context, docs []string) error {
	if len(docs) == 0 {
		return nil
	}
	vectors, err := r.embedder.EmbedBatch(ctx, docs)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if err := r.store.AddBatch(docs, vectors); err != nil {
		return fmt.Errorf("index documents: %w", err)
	}
	return nil
}

// IngestKnowledgeSource indexes the paragraphs of the document at path and
// returns how many chunks were added. Chunks are tagged with the document's
// frontmatter source, else its title. A missing or empty file adds nothing
// and is not an error.
func (r *Retriever) IngestKnowledgeSource(ctx context.Context, path string) (int, error) {
	source, chunks, err := readChunks(path)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		r.logger.Debug("knowledge source empty or missing", "path", path)
		return 0, nil
	}
	vectors, err := r.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: embed documents: %w", path, err)
	}
	if err := r.store.AddSourcedBatch(source, chunks, vectors); err != nil {
		return 0, fmt.Errorf("ingest %s: index documents: %w", path, err)
	}

	r.logger.Info("knowledge source ingested", "path", path, "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// IngestDirectory indexes every *.md file directly inside dir. Files are read
// and embedded concurrently; chunks are added in file-name order.
func (r *Retriever) IngestDirectory(ctx context.Context, dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(files)

	type batch struct {
		source  string
		chunks  []string
		vectors [][]float32
	}
	batches := make([]batch, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFiles)
	for i, path := range files {
		g.Go(func() error {
			source, chunks, err := readChunks(path)
			if err != nil || len(chunks) == 0 {
				return err
			}
			vectors, err := r.embedder.EmbedBatch(gctx, chunks)
			if err != nil {
				return fmt.Errorf("embed %s: %w", path, err)
			}
			batches[i] = batch{source: source, chunks: chunks, vectors: vectors}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for i, b := range batches {
		if len(b.chunks) == 0 {
			continue
		}
		if err := r.store.AddSourcedBatch(b.source, b.chunks, b.vectors); err != nil {
			return total, fmt.Errorf("index %s: %w", files[i], err)
		}
		total += len(b.chunks)
	}

	r.logger.Info("knowledge directory ingested", "dir", dir, "files", len(files), "chunks", total)
	return total, nil
}

// Ingest dispatches on path: directories go through IngestDirectory, files
// through IngestKnowledgeSource.
func (r *Retriever) Ingest(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return r.IngestDirectory(ctx, path)
	}
	return r.IngestKnowledgeSource(ctx, path)
}

// readChunks returns the provenance tag and paragraphs of the document at path.
func readChunks(path string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc := parser.ParseDocument(string(data))
	source := doc.GetFrontmatterString("source")
	if source == "" {
		source = doc.Title
	}
	return source, doc.Paragraphs(), nil
}
