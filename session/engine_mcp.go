package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/easyapply/actions"
	"github.com/hazyhaar/easyapply/task"
)

// MCPEngine serves the action set to an external MCP agent and waits for
// its completion signal. The agent discovers the actions as tools, reads
// the task via get_task, drives the browser through the page actions, and
// ends the session by calling complete_run.
type MCPEngine struct {
	// Transport carries the agent session. Default: stdio.
	Transport mcp.Transport

	// Model and BaseURL identify the configured agent backend. Recorded
	// in the session log so a run can be traced to the model that made
	// its decisions.
	Model   string
	BaseURL string

	Logger *slog.Logger
}

// NewMCPEngine creates an engine serving MCP over stdio.
func NewMCPEngine(logger *slog.Logger) *MCPEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCPEngine{
		Transport: &mcp.IOTransport{Reader: os.Stdin, Writer: os.Stdout},
		Logger:    logger,
	}
}

// RunSession serves one MCP session. It returns when the agent calls
// complete_run, or with an error when the agent disconnects without
// completing or ctx is cancelled.
func (e *MCPEngine) RunSession(ctx context.Context, spec *task.Spec, acts *actions.Set) (*Result, error) {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "easyapply",
		Version: "1.0.0",
	}, nil)

	acts.RegisterMCP(srv)

	srv.AddTool(&mcp.Tool{
		Name:        "get_task",
		Description: "Get the instructions for this session. Call first and follow them precisely.",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: spec.Text}},
		}, nil
	})

	done := make(chan *Result, 1)
	srv.AddTool(&mcp.Tool{
		Name:        "complete_run",
		Description: "End the session. Call exactly once, when the target number of applications is reached or no suitable listings remain.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"applied": map[string]any{"type": "integer", "description": "Applications submitted"},
				"skipped": map[string]any{"type": "integer", "description": "Jobs skipped"},
				"summary": map[string]any{"type": "string", "description": "Short closing note"},
			},
			"required": []string{"applied", "skipped"},
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var res Result
		if err := json.Unmarshal(req.Params.Arguments, &res); err != nil {
			var out mcp.CallToolResult
			out.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &out, nil
		}
		select {
		case done <- &res:
		default:
			// Second call: the session is already ending.
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "session recorded, goodbye"}},
		}, nil
	})

	ss, err := srv.Connect(ctx, e.Transport, nil)
	if err != nil {
		return nil, fmt.Errorf("session: mcp connect: %w", err)
	}
	e.Logger.Info("serving agent session", "model", e.Model, "base_url", e.BaseURL)

	ended := make(chan error, 1)
	go func() { ended <- ss.Wait() }()

	select {
	case res := <-done:
		e.Logger.Info("agent completed run", "applied", res.Applied, "skipped", res.Skipped)
		ss.Close()
		<-ended
		return res, nil
	case err := <-ended:
		// A Result delivered just before the disconnect still counts
		// as completion.
		select {
		case res := <-done:
			e.Logger.Info("agent completed run", "applied", res.Applied, "skipped", res.Skipped)
			return res, nil
		default:
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			return nil, fmt.Errorf("session: agent disconnected: %w", err)
		}
		return nil, fmt.Errorf("session: agent ended without calling complete_run")
	case <-ctx.Done():
		ss.Close()
		<-ended
		return nil, ctx.Err()
	}
}
