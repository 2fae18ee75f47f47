package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxTopK bounds search_knowledge results.
const maxTopK = 50

// SearchKnowledgeInput defines the input schema for the search_knowledge tool.
type SearchKnowledgeInput struct {
	Query string `json:"query" jsonschema:"The search query text"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Max results 1-50, default from configuration"`
}

// NewSearchKnowledgeHandler creates the search_knowledge tool handler.
func NewSearchKnowledgeHandler(deps *Dependencies) mcp.ToolHandlerFor[SearchKnowledgeInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchKnowledgeInput) (
		*mcp.CallToolResult, any, error,
	) {
		if strings.TrimSpace(input.Query) == "" {
			return ErrorResult("Query cannot be empty", "Provide a search query"), nil, nil
		}
		if input.TopK < 0 || input.TopK > maxTopK {
			return ErrorResult("top_k must be 1-50", "Reduce top_k value"), nil, nil
		}

		hits, err := deps.Knowledge.Search(ctx, input.Query, input.TopK)
		if err != nil {
			deps.Logger.Error("knowledge search failed", "error", err)
			return ErrorResult("Search failed", "Check the embedding provider"), nil, nil
		}

		deps.Logger.Info("search_knowledge completed", "query", truncateForLog(input.Query, 30), "results", len(hits))

		return JSONResult(map[string]any{"hits": hits, "count": len(hits)}, false), nil, nil
	}
}

// IngestKnowledgeInput defines the input schema for the ingest_knowledge tool.
type IngestKnowledgeInput struct {
	Path  string   `json:"path,omitempty" jsonschema:"Markdown file or directory to ingest"`
	Texts []string `json:"texts,omitempty" jsonschema:"Raw passages to add"`
}

// NewIngestKnowledgeHandler creates the ingest_knowledge tool handler.
func NewIngestKnowledgeHandler(deps *Dependencies) mcp.ToolHandlerFor[IngestKnowledgeInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input IngestKnowledgeInput) (
		*mcp.CallToolResult, any, error,
	) {
		if input.Path == "" && len(input.Texts) == 0 {
			return ErrorResult("Nothing to ingest", "Provide a path or texts"), nil, nil
		}

		var added, total int
		if input.Path != "" {
			res, err := deps.Knowledge.Ingest(ctx, input.Path)
			if err != nil {
				deps.Logger.Error("knowledge ingest failed", "path", input.Path, "error", err)
				return ErrorResult("Ingest failed", "Check the path and embedding provider"), nil, nil
			}
			added, total = res.Chunks, res.Total
		}
		if len(input.Texts) > 0 {
			res, err := deps.Knowledge.AddTexts(ctx, input.Texts)
			if err != nil {
				deps.Logger.Error("knowledge add failed", "error", err)
				return ErrorResult("Ingest failed", "Check the embedding provider"), nil, nil
			}
			added += res.Chunks
			total = res.Total
		}

		return JSONResult(map[string]any{"added": added, "total": total}, false), nil, nil
	}
}

// truncateForLog keeps the first n runes of s.
func truncateForLog(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
