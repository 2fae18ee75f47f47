package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_report",
		Description: "Run the full pipeline on a health statement and return the run trace",
	}, NewGenerateReportHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "guard_text",
		Description: "Check text for diagnoses, prescriptions, emergencies and PHI",
	}, NewGuardTextHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_knowledge",
		Description: "Semantic search over the wellness knowledge base",
	}, NewSearchKnowledgeHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_knowledge",
		Description: "Add a markdown file, a directory of markdown files, or raw passages to the knowledge base",
	}, NewIngestKnowledgeHandler(deps))
}
