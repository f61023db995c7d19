package actions

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP exposes every action in the set as an MCP tool so the
// automation engine can discover and invoke them during its decision
// loop. Failed Results surface as tool errors, which agents treat as
// recoverable; they never tear down the session.
func (s *Set) RegisterMCP(srv *mcp.Server) {
	for _, name := range s.Names() {
		a := s.Get(name)

		tool := &mcp.Tool{
			Name:        a.Name,
			Description: a.Description,
			InputSchema: a.InputSchema,
		}

		srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.Params.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}

			r := s.Call(ctx, a.Name, args)
			if !r.Success {
				var res mcp.CallToolResult
				res.SetError(errors.New(r.Error))
				return &res, nil
			}

			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: r.Message}},
			}, nil
		})
	}
}
