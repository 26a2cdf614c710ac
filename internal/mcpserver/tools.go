package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/driftline/driftline/internal/common/logger"
	convmodels "github.com/driftline/driftline/internal/conversation/models"
	"github.com/driftline/driftline/internal/orchestrator"
)

func registerTools(s *server.MCPServer, cfg Config, deps Deps, log *logger.Logger) {
	s.AddTool(
		mcp.NewTool("list_sessions",
			mcp.WithDescription("List the workspace's conversation sessions with status, assignee, and last-message summaries. Use this first to find session IDs."),
			mcp.WithString("status",
				mcp.Description("Filter by status: open, resolved, awaiting, snoozed, closed (optional)"),
			),
		),
		listSessionsHandler(cfg, deps),
	)

	s.AddTool(
		mcp.NewTool("get_transcript",
			mcp.WithDescription("Fetch the full message timeline of a session, including internal notes and system lines."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("The session ID to fetch"),
			),
		),
		getTranscriptHandler(deps),
	)

	s.AddTool(
		mcp.NewTool("send_agent_reply",
			mcp.WithDescription("Post a reply into a session as the support team. Set internal=true for a note visible only to agents."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("The session ID to reply in"),
			),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("The reply text"),
			),
			mcp.WithBoolean("internal",
				mcp.Description("Post as an internal team note instead of a visitor-visible reply (optional)"),
			),
		),
		sendAgentReplyHandler(deps),
	)

	s.AddTool(
		mcp.NewTool("close_session",
			mcp.WithDescription("Close a conversation session."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("The session ID to close"),
			),
		),
		closeSessionHandler(deps),
	)

	s.AddTool(
		mcp.NewTool("list_flows",
			mcp.WithDescription("List the workspace's automation flows with their triggers and enabled state."),
			mcp.WithBoolean("enabled_only",
				mcp.Description("Return only enabled flows (optional)"),
			),
		),
		listFlowsHandler(cfg, deps),
	)
}

func jsonResult(v interface{}) *mcp.CallToolResult {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(formatted))
}

func listSessionsHandler(cfg Config, deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessions, err := deps.Convo.ListSessions(ctx, cfg.DefaultTenant)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list sessions: %v", err)), nil
		}
		if status := req.GetString("status", ""); status != "" {
			filtered := sessions[:0]
			for _, s := range sessions {
				if string(s.Status) == status {
					filtered = append(filtered, s)
				}
			}
			sessions = filtered
		}
		return jsonResult(map[string]interface{}{"sessions": sessions}), nil
	}
}

func getTranscriptHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		messages, err := deps.Convo.ListMessages(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch transcript: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{
			"session_id": sessionID,
			"messages":   messages,
		}), nil
	}
}

func sendAgentReplyHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		msg, err := deps.Orch.HandleAgentMessage(ctx, &orchestrator.AgentMessage{
			SessionID: sessionID,
			Text:      text,
			Internal:  req.GetBool("internal", false),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to send reply: %v", err)), nil
		}
		return jsonResult(msg), nil
	}
}

func closeSessionHandler(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := deps.Orch.CloseSession(ctx, sessionID); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to close session: %v", err)), nil
		}
		return jsonResult(map[string]string{
			"session_id": sessionID,
			"status":     string(convmodels.StatusClosed),
		}), nil
	}
}

func listFlowsHandler(cfg Config, deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		flows, err := deps.Flows.ListFlows(ctx, cfg.DefaultTenant, req.GetBool("enabled_only", false))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list flows: %v", err)), nil
		}
		return jsonResult(map[string]interface{}{"flows": flows}), nil
	}
}
