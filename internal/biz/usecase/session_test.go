package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"
	"github.com/joshua2020181/textgpt/internal/metrics"
)

// Mock implementations

type mockSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*domain.Session
	getErr    error
	upsertErr error
	upserts   int
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (m *mockSessionRepo) Get(ctx context.Context, senderID string) (repo.Lookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return repo.Lookup{}, m.getErr
	}
	s, ok := m.sessions[senderID]
	if !ok {
		return repo.Lookup{}, nil
	}
	return repo.Lookup{Session: s.Clone(), Found: true}, nil
}

func (m *mockSessionRepo) Upsert(ctx context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	m.sessions[session.SenderID] = session.Clone()
	return nil
}

func (m *mockSessionRepo) List(ctx context.Context, limit int) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Session
	for _, s := range m.sessions {
		result = append(result, s.Clone())
	}
	return result, nil
}

func (m *mockSessionRepo) Close() error {
	return nil
}

func (m *mockSessionRepo) stored(t *testing.T, senderID string) *domain.Session {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[senderID]
	require.True(t, ok, "session %s not persisted", senderID)
	return s.Clone()
}

type mockCompletionRepo struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	lastReq []domain.HistoryEntry
}

func (m *mockCompletionRepo) Complete(ctx context.Context, history []domain.HistoryEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = history
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockCompletionRepo) Provider() string {
	return "mock"
}

func (m *mockCompletionRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	uc         *SessionUsecase
	sessions   *mockSessionRepo
	completion *mockCompletionRepo
	clock      *fakeClock
}

func newFixture(cfg SessionConfig) *fixture {
	f := &fixture{
		sessions:   newMockSessionRepo(),
		completion: &mockCompletionRepo{reply: "model reply"},
		clock:      &fakeClock{now: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)},
	}
	f.uc = NewSessionUsecase(f.sessions, f.completion, cfg,
		WithClock(f.clock.Now),
		WithLogger(zerolog.Nop()),
		WithMetrics(metrics.NewMetrics()),
	)
	return f
}

func (f *fixture) handle(t *testing.T, sender, text string) string {
	t.Helper()
	reply, err := f.uc.Handle(context.Background(), sender, text)
	require.NoError(t, err)
	return reply
}

// Tests

func TestHandle_NewSender(t *testing.T) {
	f := newFixture(DefaultSessionConfig)

	reply := f.handle(t, "+1555", "hello")

	assert.Equal(t, "model reply", reply)
	s := f.sessions.stored(t, "+1555")
	assert.Equal(t, []domain.HistoryEntry{
		{Role: domain.RoleSystem, Content: DefaultSessionConfig.SystemPrompt},
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleSystem, Content: "model reply"},
	}, s.History)
	assert.Equal(t, 1, s.TotalReceived)
	assert.Equal(t, 1, s.TotalSent)
	assert.Equal(t, 1, s.ReceivedToday)
	assert.Equal(t, f.clock.Now(), s.LastReset)
}

func TestHandle_CompletionReceivesFullHistory(t *testing.T) {
	f := newFixture(DefaultSessionConfig)
	f.completion.reply = "  padded reply \n"

	f.handle(t, "+1555", "first")
	reply := f.handle(t, "+1555", "second")

	assert.Equal(t, "padded reply", reply)
	require.Len(t, f.completion.lastReq, 4)
	assert.Equal(t, domain.HistoryEntry{Role: domain.RoleSystem, Content: "padded reply"}, f.completion.lastReq[2])
	assert.Equal(t, domain.HistoryEntry{Role: domain.RoleUser, Content: "second"}, f.completion.lastReq[3])
}

func TestHandle_StatsAfterMessage(t *testing.T) {
	f := newFixture(DefaultSessionConfig)

	f.handle(t, "+1555", "hello")
	before := f.sessions.stored(t, "+1555")

	reply := f.handle(t, "+1555", "!stats")

	assert.Equal(t, "Total messages received: 2, Total messages sent: 2, Messages received today: 2", reply)
	after := f.sessions.stored(t, "+1555")
	assert.Equal(t, before.History, after.History)
	assert.Equal(t, 1, f.completion.callCount())
}

func TestHandle_HelpIsPure(t *testing.T) {
	f := newFixture(DefaultSessionConfig)

	reply := f.handle(t, "+1555", "  !help\n")

	assert.Equal(t, "Commands: !help, !stats", reply)
	s := f.sessions.stored(t, "+1555")
	assert.Len(t, s.History, 1, "only the seeded prompt")
	assert.Equal(t, 0, f.completion.callCount())
	assert.Equal(t, 1, s.TotalSent)
}

func TestHandle_UnknownCommandFallsThrough(t *testing.T) {
	f := newFixture(DefaultSessionConfig)

	for _, text := range []string{"!Help", "!stats please", "!unknown"} {
		assert.Equal(t, "model reply", f.handle(t, "+1555", text))
	}
	assert.Equal(t, 3, f.completion.callCount())
}

func TestHandle_QuotaReached(t *testing.T) {
	f := newFixture(DefaultSessionConfig)
	start := f.clock.Now()

	for i := 1; i < 10; i++ {
		assert.Equal(t, "model reply", f.handle(t, "+1555", fmt.Sprintf("msg %d", i)))
		f.clock.Advance(time.Minute)
	}

	want := "You have reached the daily message limit of 10. Your quota will reset at " +
		start.Add(24*time.Hour).Format("2006-01-02 15:04:05") + " UTC"
	assert.Equal(t, want, f.handle(t, "+1555", "msg 10"))
	assert.Equal(t, want, f.handle(t, "+1555", "msg 11"))

	s := f.sessions.stored(t, "+1555")
	assert.Equal(t, 10, s.ReceivedToday)
	assert.Equal(t, 11, s.TotalReceived)
	assert.Equal(t, 11, s.TotalSent)
	assert.Equal(t, 9, f.completion.callCount())
	assert.Len(t, s.History, 1+2*9)
}

func TestHandle_QuotaPrecedesCommands(t *testing.T) {
	cfg := DefaultSessionConfig
	cfg.Quota.DailyLimit = 2
	f := newFixture(cfg)

	f.handle(t, "+1555", "hello")

	for _, cmd := range []string{"!help", "!stats"} {
		reply := f.handle(t, "+1555", cmd)
		assert.Contains(t, reply, "daily message limit of 2")
	}
}

func TestHandle_WindowRollsOver(t *testing.T) {
	cfg := DefaultSessionConfig
	cfg.Quota.DailyLimit = 3
	f := newFixture(cfg)
	start := f.clock.Now()

	for i := 0; i < 3; i++ {
		f.handle(t, "+1555", "msg")
	}
	require.Equal(t, 3, f.sessions.stored(t, "+1555").ReceivedToday)

	f.clock.Advance(24*time.Hour + time.Second)
	reply := f.handle(t, "+1555", "back again")

	assert.Equal(t, "model reply", reply)
	s := f.sessions.stored(t, "+1555")
	assert.Equal(t, 1, s.ReceivedToday)
	assert.Equal(t, start.Add(24*time.Hour+time.Second), s.LastReset)
}

func TestHandle_ResetIsIdempotentWithinWindow(t *testing.T) {
	f := newFixture(DefaultSessionConfig)
	start := f.clock.Now()

	f.handle(t, "+1555", "one")
	f.clock.Advance(23 * time.Hour)
	f.handle(t, "+1555", "two")

	s := f.sessions.stored(t, "+1555")
	assert.Equal(t, start, s.LastReset)
	assert.Equal(t, 2, s.ReceivedToday)
}

func TestHandle_CompletionFailure(t *testing.T) {
	f := newFixture(DefaultSessionConfig)
	f.completion.err = errors.New("provider down")

	reply := f.handle(t, "+1555", "hello")

	assert.Equal(t, FallbackReply, reply)
	s := f.sessions.stored(t, "+1555")
	require.Len(t, s.History, 3)
	assert.Equal(t, domain.HistoryEntry{Role: domain.RoleSystem, Content: FallbackReply}, s.History[2])
	assert.Equal(t, 1, s.TotalSent)
}

func TestHandle_EmptyCompletionUsesFallback(t *testing.T) {
	f := newFixture(DefaultSessionConfig)
	f.completion.reply = "   "

	assert.Equal(t, FallbackReply, f.handle(t, "+1555", "hello"))
}

func TestHandle_CompletionTimeout(t *testing.T) {
	cfg := DefaultSessionConfig
	cfg.CompletionTimeout = 20 * time.Millisecond
	f := newFixture(cfg)
	f.uc.completionRepo = completionFunc(func(ctx context.Context, _ []domain.HistoryEntry) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	assert.Equal(t, FallbackReply, f.handle(t, "+1555", "slow"))
}

func TestHandle_CounterConsistency(t *testing.T) {
	f := newFixture(DefaultSessionConfig)

	prevReceived, prevSent := 0, 0
	for _, text := range []string{"hi", "!stats", "!help", "bye"} {
		f.handle(t, "+1555", text)
		s := f.sessions.stored(t, "+1555")
		assert.Equal(t, prevReceived+1, s.TotalReceived, text)
		assert.Equal(t, prevSent+1, s.TotalSent, text)
		prevReceived, prevSent = s.TotalReceived, s.TotalSent
	}
}

func TestHandle_SeedsPromptForExistingEmptyHistory(t *testing.T) {
	f := newFixture(DefaultSessionConfig)
	f.sessions.sessions["+1555"] = &domain.Session{
		SenderID:      "+1555",
		TotalReceived: 4,
		TotalSent:     4,
		ReceivedToday: 4,
		LastReset:     f.clock.Now().Add(-time.Hour),
	}

	f.handle(t, "+1555", "hello")

	s := f.sessions.stored(t, "+1555")
	require.Len(t, s.History, 3)
	assert.Equal(t, domain.RoleSystem, s.History[0].Role)
	assert.Equal(t, 5, s.TotalReceived)
}

func TestHandle_StoreReadFailure(t *testing.T) {
	f := newFixture(DefaultSessionConfig)
	f.sessions.getErr = errors.New("disk gone")

	_, err := f.uc.Handle(context.Background(), "+1555", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get session")
	assert.Equal(t, 0, f.completion.callCount())
}

func TestHandle_StoreWriteFailure(t *testing.T) {
	f := newFixture(DefaultSessionConfig)
	f.sessions.upsertErr = errors.New("read-only")

	_, err := f.uc.Handle(context.Background(), "+1555", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "save session")
}

func TestHandle_ConcurrentSameSender(t *testing.T) {
	cfg := DefaultSessionConfig
	cfg.Quota.DailyLimit = 1000
	f := newFixture(cfg)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.uc.Handle(context.Background(), "+1555", fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	s := f.sessions.stored(t, "+1555")
	assert.Equal(t, n, s.TotalReceived)
	assert.Equal(t, n, s.TotalSent)
	assert.Len(t, s.History, 1+2*n)
	for i := 1; i < len(s.History); i += 2 {
		assert.Equal(t, domain.RoleUser, s.History[i].Role)
		assert.Equal(t, domain.RoleSystem, s.History[i+1].Role)
	}
	assert.Equal(t, 0, f.uc.locks.size())
}

func TestHandle_SendersAreIndependent(t *testing.T) {
	cfg := DefaultSessionConfig
	cfg.Quota.DailyLimit = 1
	f := newFixture(cfg)

	a := f.handle(t, "+1555", "hello")
	b := f.handle(t, "+1666", "hello")

	assert.Contains(t, a, "daily message limit")
	assert.Contains(t, b, "daily message limit")
	assert.Equal(t, 1, f.sessions.stored(t, "+1555").TotalReceived)
	assert.Equal(t, 1, f.sessions.stored(t, "+1666").TotalReceived)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
		ok   bool
	}{
		{"!help", CommandHelp, true},
		{" !stats\t", CommandStats, true},
		{"!STATS", "", false},
		{"!stats now", "", false},
		{"help", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}

type completionFunc func(ctx context.Context, history []domain.HistoryEntry) (string, error)

func (f completionFunc) Complete(ctx context.Context, history []domain.HistoryEntry) (string, error) {
	return f(ctx, history)
}

func (f completionFunc) Provider() string {
	return "func"
}
