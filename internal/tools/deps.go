// Package tools provides MCP tool handlers and registration.
package tools

import (
	"log/slog"

	"github.com/raphaelgruber/healthrag-go/internal/service"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Reports   *service.ReportService
	Knowledge *service.KnowledgeService
	Logger    *slog.Logger
}

// NewDependencies collects the services tools need from app.
func NewDependencies(app *service.App) *Dependencies {
	return &Dependencies{
		Reports:   app.Reports,
		Knowledge: app.Knowledge,
		Logger:    app.Logger.With("component", "tools"),
	}
}
