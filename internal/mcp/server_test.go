package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"
)

type mockSessionReader struct {
	sessions []*domain.Session
	err      error
	limit    int
}

func (m *mockSessionReader) GetSession(ctx context.Context, senderID string) (repo.Lookup, error) {
	if m.err != nil {
		return repo.Lookup{}, m.err
	}
	for _, s := range m.sessions {
		if s.SenderID == senderID {
			return repo.Lookup{Session: s, Found: true}, nil
		}
	}
	return repo.Lookup{}, nil
}

func (m *mockSessionReader) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	m.limit = limit
	return m.sessions, m.err
}

func (m *mockSessionReader) DailyLimit() int { return 10 }

func newTestMCPServer() (*Server, *mockSessionReader) {
	reader := &mockSessionReader{sessions: []*domain.Session{
		{SenderID: "+1555", TotalReceived: 12, TotalSent: 12, ReceivedToday: 10, LastReset: time.Unix(0, 0).UTC()},
		{SenderID: "ou_1", TotalReceived: 3, TotalSent: 3, ReceivedToday: 3, LastReset: time.Unix(0, 0).UTC()},
	}}
	return NewServer(reader, "test"), reader
}

func TestHandleSessionStats(t *testing.T) {
	s, _ := newTestMCPServer()

	_, out, err := s.handleSessionStats(context.Background(), &mcp.CallToolRequest{}, SessionStatsInput{SenderID: "ou_1"})

	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, 3, out.Session.TotalSent)
	assert.Equal(t, 7, out.RemainingToday)

	_, out, err = s.handleSessionStats(context.Background(), &mcp.CallToolRequest{}, SessionStatsInput{SenderID: "+1555"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.RemainingToday)
}

func TestHandleSessionStats_Unknown(t *testing.T) {
	s, _ := newTestMCPServer()

	_, out, err := s.handleSessionStats(context.Background(), &mcp.CallToolRequest{}, SessionStatsInput{SenderID: "+1999"})

	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Nil(t, out.Session)
	assert.Equal(t, 10, out.RemainingToday)
}

func TestHandleSessionStats_Errors(t *testing.T) {
	s, reader := newTestMCPServer()

	_, _, err := s.handleSessionStats(context.Background(), &mcp.CallToolRequest{}, SessionStatsInput{})
	assert.Error(t, err)

	reader.err = errors.New("db closed")
	_, _, err = s.handleSessionStats(context.Background(), &mcp.CallToolRequest{}, SessionStatsInput{SenderID: "+1555"})
	assert.Error(t, err)
}

func TestHandleListSessions(t *testing.T) {
	s, reader := newTestMCPServer()

	_, out, err := s.handleListSessions(context.Background(), &mcp.CallToolRequest{}, ListSessionsInput{Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, 2, reader.limit)
	require.Len(t, out.Sessions, 2)
	assert.Equal(t, "+1555", out.Sessions[0].SenderID)
	assert.Equal(t, "1970-01-02T00:00:00Z", out.Sessions[0].NextReset)
}

func TestServer_ToolsOverInMemoryTransport(t *testing.T) {
	s, _ := newTestMCPServer()
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer serverSession.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer clientSession.Close()

	tools, err := clientSession.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"session_stats", "list_sessions"}, names)

	result, err := clientSession.CallTool(ctx, &mcp.CallToolParams{
		Name:      "session_stats",
		Arguments: map[string]any{"sender_id": "ou_1"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}
