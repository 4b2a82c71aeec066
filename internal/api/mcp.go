package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mwhitby/debrief/internal/ledger"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *ledger.Store
}

// NewMCPServer creates an MCP server exposing the processing ledger as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"debrief",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("debrief — meeting notes extraction ledger: processed meetings and pipeline run history."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_processed",
			mcp.WithDescription("List meetings already processed by the extraction pipeline, most recent first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
		),
		mcpListProcessed(deps),
	)

	s.AddTool(
		mcp.NewTool("get_processed",
			mcp.WithDescription("Look up a processed meeting by its meeting ID."),
			mcp.WithString("meeting_id", mcp.Description("Meeting ID"), mcp.Required()),
		),
		mcpGetProcessed(deps),
	)

	s.AddTool(
		mcp.NewTool("list_runs",
			mcp.WithDescription("List recent pipeline runs with their completed/skipped/failed counts."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpListRuns(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"debrief://recent",
			"Recently Processed Meetings",
			mcp.WithResourceDescription("Last 10 processed meetings as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpListProcessed(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		records, err := deps.Store.ListProcessed(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list processed meetings: %v", err)), nil
		}

		if len(records) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(records)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpGetProcessed(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		meetingID, err := req.RequireString("meeting_id")
		if err != nil {
			return mcpError("meeting_id is required"), nil
		}

		record, err := deps.Store.GetProcessed(meetingID)
		if errors.Is(err, ledger.ErrNotFound) {
			return mcpError(fmt.Sprintf("meeting %s has not been processed", meetingID)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to get meeting: %v", err)), nil
		}

		b, err := json.Marshal(record)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpListRuns(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		runs, err := deps.Store.ListRuns(limit)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list runs: %v", err)), nil
		}

		if len(runs) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(runs)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Store.ListProcessed(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list processed meetings: %w", err)
		}

		type recentEntry struct {
			MeetingID   string `json:"meeting_id"`
			Title       string `json:"title"`
			ProcessedAt string `json:"processed_at"`
		}

		entries := make([]recentEntry, len(records))
		for i, rec := range records {
			entries[i] = recentEntry{
				MeetingID:   rec.MeetingID,
				Title:       rec.Title,
				ProcessedAt: rec.ProcessedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entries: %w", err)
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
