package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"
	"github.com/joshua2020181/textgpt/internal/metrics"
)

// FallbackReply is sent (and recorded) when the completion call fails
const FallbackReply = "Failed to get response."

const resetTimeLayout = "2006-01-02 15:04:05 UTC"

// SessionConfig contains session manager configuration
type SessionConfig struct {
	Quota             domain.QuotaConfig
	SystemPrompt      string        // Seeded as the first history entry
	HelpText          string        // Reply to !help
	CompletionTimeout time.Duration // 0 disables the bound
}

// DefaultSessionConfig is the default session manager configuration
var DefaultSessionConfig = SessionConfig{
	Quota:             domain.QuotaConfig{DailyLimit: 10},
	SystemPrompt:      "You are a helpful assistant. Please keep your responses concise.",
	HelpText:          "Commands: !help, !stats",
	CompletionTimeout: 30 * time.Second,
}

// SessionUsecase handles session logic: quota, commands, history and persistence
type SessionUsecase struct {
	sessionRepo    repo.SessionRepo
	completionRepo repo.CompletionRepo
	config         SessionConfig

	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
	locks   *senderLocks
}

// SessionOption configures a SessionUsecase
type SessionOption func(*SessionUsecase)

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(uc *SessionUsecase) { uc.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(uc *SessionUsecase) { uc.logger = logger }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) SessionOption {
	return func(uc *SessionUsecase) { uc.now = now }
}

// NewSessionUsecase creates a new session usecase
func NewSessionUsecase(
	sessionRepo repo.SessionRepo,
	completionRepo repo.CompletionRepo,
	config SessionConfig,
	opts ...SessionOption,
) *SessionUsecase {
	uc := &SessionUsecase{
		sessionRepo:    sessionRepo,
		completionRepo: completionRepo,
		config:         config,
		logger:         log.Logger.With().Str("component", "session").Logger(),
		now:            time.Now,
		locks:          newSenderLocks(),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Handle processes one inbound message and returns the reply text.
// Completion failures are absorbed into FallbackReply; only store failures are returned.
func (uc *SessionUsecase) Handle(ctx context.Context, senderID, text string) (string, error) {
	unlock := uc.locks.lock(senderID)
	defer unlock()

	logger := uc.logger.With().Str("sender", senderID).Logger()
	now := uc.clock()

	session, err := uc.load(ctx, senderID, now)
	if err != nil {
		return "", err
	}

	if session.ResetIfDue(now) {
		logger.Debug().Time("next_reset", session.NextReset()).Msg("Daily quota window reset")
	}
	session.RecordInbound(uc.config.Quota)

	// Quota takes precedence over commands
	if session.OverQuota(uc.config.Quota) {
		session.RecordReply()
		logger.Info().Int("received_today", session.ReceivedToday).Msg("Daily limit reached")
		return uc.finish(ctx, session, uc.quotaReply(session), metrics.OutcomeQuota)
	}

	if cmd, ok := ParseCommand(text); ok {
		session.RecordReply()
		logger.Debug().Str("command", string(cmd)).Msg("Command short-circuit")
		return uc.finish(ctx, session, uc.runCommand(cmd, session), metrics.OutcomeCommand)
	}

	if err := session.Append(domain.RoleUser, text); err != nil {
		return "", err
	}

	reply, outcome := uc.complete(ctx, logger, session.History)
	if err := session.Append(domain.RoleSystem, reply); err != nil {
		return "", err
	}
	session.RecordReply()

	return uc.finish(ctx, session, reply, outcome)
}

// GetSession gets a session
func (uc *SessionUsecase) GetSession(ctx context.Context, senderID string) (repo.Lookup, error) {
	return uc.sessionRepo.Get(ctx, senderID)
}

// ListSessions lists sessions
func (uc *SessionUsecase) ListSessions(ctx context.Context, limit int) ([]*domain.Session, error) {
	return uc.sessionRepo.List(ctx, limit)
}

// DailyLimit returns the configured daily limit
func (uc *SessionUsecase) DailyLimit() int {
	return uc.config.Quota.DailyLimit
}

func (uc *SessionUsecase) load(ctx context.Context, senderID string, now time.Time) (*domain.Session, error) {
	lookup, err := uc.sessionRepo.Get(ctx, senderID)
	if err != nil {
		uc.metrics.StoreError("get")
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session *domain.Session
	if lookup.Found && lookup.Session != nil {
		session = lookup.Session.Clone()
	} else {
		session = domain.NewSession(senderID, now)
	}
	session.SeedPrompt(uc.config.SystemPrompt)

	return session, nil
}

func (uc *SessionUsecase) complete(ctx context.Context, logger zerolog.Logger, history []domain.HistoryEntry) (string, string) {
	if uc.config.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.config.CompletionTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := uc.completionRepo.Complete(ctx, append([]domain.HistoryEntry(nil), history...))
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = fmt.Errorf("empty completion")
	}
	uc.metrics.Completion(uc.completionRepo.Provider(), time.Since(start), err)

	if err != nil {
		logger.Warn().Err(err).Str("provider", uc.completionRepo.Provider()).Msg("Completion failed, using fallback reply")
		return FallbackReply, metrics.OutcomeFallback
	}
	return reply, metrics.OutcomeCompletion
}

func (uc *SessionUsecase) finish(ctx context.Context, session *domain.Session, reply, outcome string) (string, error) {
	if err := uc.sessionRepo.Upsert(ctx, session); err != nil {
		uc.metrics.StoreError("upsert")
		return "", fmt.Errorf("save session: %w", err)
	}
	uc.metrics.Reply(outcome)
	return reply, nil
}

func (uc *SessionUsecase) quotaReply(session *domain.Session) string {
	return fmt.Sprintf("You have reached the daily message limit of %d. Your quota will reset at %s",
		uc.config.Quota.DailyLimit, session.NextReset().UTC().Format(resetTimeLayout))
}

// clock returns now at the store's second precision
func (uc *SessionUsecase) clock() time.Time {
	return time.Unix(uc.now().Unix(), 0).UTC()
}
