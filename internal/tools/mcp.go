package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes the dispatcher's tools over MCP. Results are always
// plain JSON; the true outcome stays on the Invocation.
func NewMCPServer(d *Dispatcher, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"voicecall",
		version,
		server.WithToolCapabilities(true),
	)
	for _, def := range d.Definitions() {
		s.AddTool(def, mcpHandler(d, def.Name))
	}
	return s
}

// NewMCPHandler wraps an MCP server in the streamable HTTP transport.
func NewMCPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

func mcpHandler(d *Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return nil, fmt.Errorf("marshal args: %w", err)
		}
		inv := d.Dispatch(ctx, name, raw)
		return mcp.NewToolResultJSON(inv.Payload)
	}
}
