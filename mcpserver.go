package main

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMcpServer exposes the question answering pipeline as an MCP tool so
// agent hosts can query the indexed documents.
func NewMcpServer(pipeline answerer) *server.MCPServer {
	tool := mcp.NewTool("ask",
		mcp.WithDescription("Answer a question about the indexed documents and return the supporting sources"),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question to answer"),
		))

	srv := server.NewMCPServer("ragqa", "0.1.0", server.WithToolCapabilities(false))
	srv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := request.RequireString("question")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		answer := pipeline.Answer(ctx, q, nil)

		raw, err := json.Marshal(answer)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(string(raw)), nil
	})

	return srv
}
