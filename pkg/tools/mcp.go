package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

type CheckStatusInput struct{}

type RunSyncInput struct {
	Keyword string `json:"keyword,omitempty" jsonschema:"keyword to match in task titles, defaults to the configured keyword"`
}

type StartAutomationInput struct {
	Interval string `json:"interval,omitempty" jsonschema:"run interval as a Go duration such as 15m, at least 1m"`
	Keyword  string `json:"keyword,omitempty" jsonschema:"keyword to match in task titles"`
	RunNow   bool   `json:"runNow,omitempty" jsonschema:"run once immediately instead of waiting one interval"`
}

type StopAutomationInput struct{}

type GetLogsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of most recent entries to return"`
}

// NewMCPServer registers the sync control tools on a new MCP server.
func NewMCPServer(svc *Service, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "taskcal",
			Title:   "taskcal sync engine",
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: "Keeps Google Calendar events in sync with Google Tasks whose titles contain a keyword. " +
				"Use check_status to inspect configuration and statistics, run_sync to reconcile now, " +
				"start_automation/stop_automation to control recurring runs, and get_logs to read recent activity.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_status",
		Title:       "Check status",
		Description: "Report configuration, automation state and cumulative sync statistics.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ CheckStatusInput) (*mcp.CallToolResult, any, error) {
		return jsonResult(svc.Status())
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_sync",
		Title:       "Run sync",
		Description: "Reconcile every incomplete task whose title contains the keyword with its calendar event.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in RunSyncInput) (*mcp.CallToolResult, any, error) {
		run, err := svc.RunSync(ctx, in.Keyword)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return jsonResult(run)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_automation",
		Title:       "Start automation",
		Description: "Start running the sync on a fixed interval.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in StartAutomationInput) (*mcp.CallToolResult, any, error) {
		st, err := svc.StartAutomation(in.Interval, in.Keyword, in.RunNow)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return jsonResult(st)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stop_automation",
		Title:       "Stop automation",
		Description: "Stop recurring runs. A run already in progress completes.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ StopAutomationInput) (*mcp.CallToolResult, any, error) {
		return jsonResult(map[string]bool{"stopped": svc.StopAutomation()})
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_logs",
		Title:       "Get logs",
		Description: "Return the most recent activity log entries, oldest first.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in GetLogsInput) (*mcp.CallToolResult, any, error) {
		return jsonResult(svc.Logs(in.Limit))
	})

	return server
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil, nil
}

// errorResult reports a failed operation to the caller as tool output
// rather than a protocol error.
func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{
			Text: fmt.Sprintf("%s: %s", syncerr.KindOf(err), syncerr.Message(err)),
		}},
	}
}
