package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/surveus/surveus/internal/pipeline"
	"github.com/surveus/surveus/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store  *storage.Store
	Runner PipelineRunner // optional; if nil, trigger_survey returns an error
}

// NewMCPServer creates an MCP server exposing the survey pipeline to
// operator tooling.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"surveus",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("surveus — survey lifecycle pipeline: trigger runs, inspect surveys, read collected responses."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("trigger_survey",
			mcp.WithDescription("Run a survey batch. Mode \"create\" evaluates customers and provisions surveys; \"fetch\" collects submitted responses."),
			mcp.WithString("mode", mcp.Description("Run mode: create or fetch (default create)")),
		),
		mcpTriggerSurvey(deps),
	)

	s.AddTool(
		mcp.NewTool("list_surveys",
			mcp.WithDescription("List provisioned surveys, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of surveys (default 20)")),
		),
		mcpListSurveys(deps),
	)

	s.AddTool(
		mcp.NewTool("survey_responses",
			mcp.WithDescription("Return the normalized responses collected for one survey."),
			mcp.WithString("survey_id", mcp.Description("Survey identifier"), mcp.Required()),
		),
		mcpSurveyResponses(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"surveys://recent",
			"Recent Surveys",
			mcp.WithResourceDescription("Last 10 provisioned surveys as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentSurveys(deps),
	)

	return s
}

func mcpTriggerSurvey(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Runner == nil {
			return mcpError("pipeline not available: missing provider credentials"), nil
		}

		mode := pipeline.Mode(req.GetString("mode", string(pipeline.ModeCreate)))
		if mode != pipeline.ModeCreate && mode != pipeline.ModeFetch {
			return mcpError(fmt.Sprintf("mode must be %q or %q", pipeline.ModeCreate, pipeline.ModeFetch)), nil
		}

		rep, err := deps.Runner.Run(ctx, mode)
		if err != nil {
			return mcpError(fmt.Sprintf("pipeline run failed: %v", err)), nil
		}

		b, err := json.Marshal(reportToBody(rep))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListSurveys(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		surveys, err := deps.Store.ListRecentSurveys(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list surveys: %v", err)), nil
		}

		type surveySummary struct {
			ID         string `json:"id"`
			CustomerID string `json:"customer_id"`
			Title      string `json:"title"`
			Status     string `json:"status"`
			CreatedAt  string `json:"created_at"`
		}
		summaries := make([]surveySummary, len(surveys))
		for i, sv := range surveys {
			summaries[i] = surveySummary{
				ID:         sv.ID,
				CustomerID: sv.CustomerID,
				Title:      sv.Title,
				Status:     sv.Status,
				CreatedAt:  sv.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal surveys: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSurveyResponses(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		surveyID, err := req.RequireString("survey_id")
		if err != nil {
			return mcpError("survey_id is required"), nil
		}

		if _, err := deps.Store.GetSurvey(surveyID); errors.Is(err, storage.ErrNotFound) {
			return mcpError("survey not found"), nil
		} else if err != nil {
			return mcpError(fmt.Sprintf("failed to get survey: %v", err)), nil
		}

		responses, err := deps.Store.ListResponsesBySurvey(surveyID)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list responses: %v", err)), nil
		}

		bodies := make([]responseBody, len(responses))
		for i, resp := range responses {
			bodies[i] = responseBody{
				ID:        resp.ID,
				SurveyID:  resp.SurveyID,
				Answers:   json.RawMessage(resp.ResponseJSON),
				CreatedAt: resp.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(bodies)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal responses: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecentSurveys(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		surveys, err := deps.Store.ListRecentSurveys(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list surveys: %w", err)
		}

		bodies := make([]surveyBody, len(surveys))
		for i, sv := range surveys {
			bodies[i] = surveyToBody(sv)
		}

		b, err := json.Marshal(bodies)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal surveys: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
