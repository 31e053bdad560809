package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"
)

// SessionReader is the read-only session view exposed to operators
type SessionReader interface {
	GetSession(ctx context.Context, senderID string) (repo.Lookup, error)
	ListSessions(ctx context.Context, limit int) ([]*domain.Session, error)
	DailyLimit() int
}

// Server provides read-only MCP tools for inspecting sessions
type Server struct {
	server   *mcp.Server
	sessions SessionReader
}

// NewServer creates a new operator MCP server
func NewServer(sessions SessionReader, version string) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "textgpt-sessions",
		Version: version,
	}, nil)

	s := &Server{
		server:   server,
		sessions: sessions,
	}
	s.registerTools()
	return s
}

// Run serves the tools over stdio until the client disconnects or ctx is done
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "session_stats",
		Description: "Get usage counters and quota state for one sender (phone number or Feishu open_id).",
	}, s.handleSessionStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List sessions, most recently reset first.",
	}, s.handleListSessions)
}

// SessionStatsInput is the input for session_stats tool
type SessionStatsInput struct {
	SenderID string `json:"sender_id" jsonschema:"The sender identifier to look up"`
}

// SessionInfo is a session's counters with RFC 3339 timestamps
type SessionInfo struct {
	SenderID      string `json:"sender_id"`
	TotalReceived int    `json:"total_received"`
	TotalSent     int    `json:"total_sent"`
	ReceivedToday int    `json:"received_today"`
	LastReset     string `json:"last_reset"`
	NextReset     string `json:"next_reset"`
	HistoryLength int    `json:"history_length"`
}

func toSessionInfo(session *domain.Session) SessionInfo {
	summary := session.Summarize()
	return SessionInfo{
		SenderID:      summary.SenderID,
		TotalReceived: summary.TotalReceived,
		TotalSent:     summary.TotalSent,
		ReceivedToday: summary.ReceivedToday,
		LastReset:     summary.LastReset.Format(time.RFC3339),
		NextReset:     summary.NextReset.Format(time.RFC3339),
		HistoryLength: summary.HistoryLength,
	}
}

// SessionStatsOutput contains one session's counters
type SessionStatsOutput struct {
	Found          bool         `json:"found"`
	Session        *SessionInfo `json:"session,omitempty"`
	DailyLimit     int          `json:"daily_limit"`
	RemainingToday int          `json:"remaining_today"`
}

func (s *Server) handleSessionStats(ctx context.Context, req *mcp.CallToolRequest, input SessionStatsInput) (*mcp.CallToolResult, SessionStatsOutput, error) {
	if input.SenderID == "" {
		return nil, SessionStatsOutput{}, fmt.Errorf("sender_id is required")
	}

	limit := s.sessions.DailyLimit()
	lookup, err := s.sessions.GetSession(ctx, input.SenderID)
	if err != nil {
		return nil, SessionStatsOutput{}, err
	}
	if !lookup.Found {
		return nil, SessionStatsOutput{DailyLimit: limit, RemainingToday: limit}, nil
	}

	info := toSessionInfo(lookup.Session)
	remaining := limit - info.ReceivedToday
	if remaining < 0 {
		remaining = 0
	}
	return nil, SessionStatsOutput{
		Found:          true,
		Session:        &info,
		DailyLimit:     limit,
		RemainingToday: remaining,
	}, nil
}

// ListSessionsInput is the input for list_sessions tool
type ListSessionsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of sessions to return (default 50)"`
}

// ListSessionsOutput contains session summaries
type ListSessionsOutput struct {
	Sessions []SessionInfo `json:"sessions"`
}

func (s *Server) handleListSessions(ctx context.Context, req *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, ListSessionsOutput, error) {
	sessions, err := s.sessions.ListSessions(ctx, input.Limit)
	if err != nil {
		return nil, ListSessionsOutput{}, err
	}

	out := ListSessionsOutput{Sessions: make([]SessionInfo, 0, len(sessions))}
	for _, session := range sessions {
		out.Sessions = append(out.Sessions, toSessionInfo(session))
	}
	return nil, out, nil
}
