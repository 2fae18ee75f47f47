package tools

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/healthrag-go/internal/models"
	"github.com/raphaelgruber/healthrag-go/internal/service"
)

// GenerateReportInput defines the input schema for the generate_report tool.
type GenerateReportInput struct {
	Text           string `json:"text" jsonschema:"The health statement, 10-5000 characters"`
	Source         string `json:"source,omitempty" jsonschema:"One of web, sms, voice, api, email (default web)"`
	InputType      string `json:"input_type,omitempty" jsonschema:"One of chat, intake, survey, referral (default chat)"`
	ConsentGranted bool   `json:"consent_granted,omitempty" jsonschema:"Required when the statement contains PHI"`
	UserID         string `json:"user_id,omitempty" jsonschema:"Caller identifier, generated when absent"`
}

// NewGenerateReportHandler creates the generate_report tool handler.
// The trace is returned for failed runs too, flagged as an error.
func NewGenerateReportHandler(deps *Dependencies) mcp.ToolHandlerFor[GenerateReportInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GenerateReportInput) (
		*mcp.CallToolResult, any, error,
	) {
		if strings.TrimSpace(input.Text) == "" {
			return ErrorResult("Text cannot be empty", "Provide a health statement of at least 10 characters"), nil, nil
		}

		trace, err := deps.Reports.Generate(ctx, service.ReportRequest{
			RawText:        input.Text,
			Source:         models.Source(input.Source),
			InputType:      models.InputType(input.InputType),
			ConsentGranted: input.ConsentGranted,
			UserID:         input.UserID,
		})
		if err != nil {
			deps.Logger.Warn("generate_report failed", "trace_id", trace.TraceID, "error", err)
		} else {
			deps.Logger.Info("generate_report completed", "trace_id", trace.TraceID, "rag_used", trace.RAG.Used)
		}
		return JSONResult(trace, err != nil), nil, nil
	}
}

// GuardTextInput defines the input schema for the guard_text tool.
type GuardTextInput struct {
	Text string `json:"text" jsonschema:"The text to check"`
}

// NewGuardTextHandler creates the guard_text tool handler.
func NewGuardTextHandler(deps *Dependencies) mcp.ToolHandlerFor[GuardTextInput, any] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input GuardTextInput) (*mcp.CallToolResult, any, error) {
		res := deps.Reports.Guard(input.Text)
		deps.Logger.Debug("guard_text completed", "allowed", res.Allowed, "severity", res.Severity)
		return JSONResult(res, false), nil, nil
	}
}
