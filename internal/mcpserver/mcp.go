// Package mcpserver exposes the compliance assistant over the Model Context
// Protocol, so editor agents can ask questions and browse sessions through
// the same session controller the CLI drives.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/levchenko/complychat/internal/backend"
	"github.com/levchenko/complychat/internal/chat"
)

// Deps holds what the MCP surface needs.
type Deps struct {
	Controller *chat.Controller
}

// New creates an MCP server with the complychat tools and resources
// registered.
func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"complychat",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("complychat is a client for a regulatory compliance assistant: ask questions about uploaded compliance documents and browse prior sessions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_compliance",
			mcp.WithDescription("Ask the compliance assistant a question in the current session."),
			mcp.WithString("question", mcp.Description("The compliance question to ask"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List prior conversation sessions with their previews."),
		),
		mcpListSessions(deps),
	)

	s.AddTool(
		mcp.NewTool("load_session",
			mcp.WithDescription("Load a prior session by id and return its transcript."),
			mcp.WithString("session_id", mcp.Description("Id from list_sessions"), mcp.Required()),
		),
		mcpLoadSession(deps),
	)

	s.AddTool(
		mcp.NewTool("new_session",
			mcp.WithDescription("Discard the current conversation and start fresh."),
		),
		mcpNewSession(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"session://current",
			"Current Session",
			mcp.WithResourceDescription("The active session transcript as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSession(deps),
	)

	return s
}

func mcpAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		if err := deps.Controller.SendMessage(ctx, question); err != nil {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		session := deps.Controller.Session()
		if len(session.Messages) == 0 {
			return mcpError("no response recorded"), nil
		}
		last := session.Messages[len(session.Messages)-1]
		b, err := json.Marshal(last)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListSessions(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := deps.Controller.RefreshHistory(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("listing sessions failed: %v", err)), nil
		}
		if len(entries) == 0 {
			return mcpText("[]"), nil
		}
		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal sessions: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpLoadSession(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcpError("session_id is required"), nil
		}

		if err := deps.Controller.SelectHistoryEntry(ctx, id); err != nil {
			return mcpError(fmt.Sprintf("loading session failed: %v", err)), nil
		}

		b, err := json.Marshal(deps.Controller.Session().Messages)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal transcript: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpNewSession(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		deps.Controller.StartNew()
		return mcpText("Started a new session."), nil
	}
}

func mcpResourceSession(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		session := deps.Controller.Session()

		view := struct {
			ID       string            `json:"session_id,omitempty"`
			Mode     string            `json:"mode"`
			IsDemo   bool              `json:"is_demo"`
			Messages []backend.Message `json:"messages"`
		}{
			ID:       session.ID,
			Mode:     session.Mode.String(),
			IsDemo:   session.IsDemo,
			Messages: session.Messages,
		}
		b, err := json.Marshal(view)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal session: %w", err)
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
