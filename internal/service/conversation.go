package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joshua2020181/textgpt/internal/biz/repo"
	"github.com/joshua2020181/textgpt/internal/biz/usecase"
	"github.com/joshua2020181/textgpt/internal/metrics"
)

// Channels
const (
	ChannelSMS    = "sms"
	ChannelFeishu = "feishu"
)

// ErrorReply is sent when the session store fails
const ErrorReply = "Sorry, something went wrong. Please try again later."

// ConversationService routes inbound messages through the session manager and
// delivers the reply on the channel the message arrived on
type ConversationService struct {
	sessionUC *usecase.SessionUsecase
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu      sync.RWMutex
	senders map[string]repo.MessageRepo
}

// NewConversationService creates a new conversation service
func NewConversationService(sessionUC *usecase.SessionUsecase, m *metrics.Metrics) *ConversationService {
	return &ConversationService{
		sessionUC: sessionUC,
		metrics:   m,
		logger:    log.Logger.With().Str("component", "conversation").Logger(),
		senders:   make(map[string]repo.MessageRepo),
	}
}

// RegisterChannel sets the outbound sender for a channel
func (s *ConversationService) RegisterChannel(channel string, sender repo.MessageRepo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.senders[channel] = sender
}

// Receive handles one inbound message and sends exactly one reply
func (s *ConversationService) Receive(ctx context.Context, channel, senderID, text string) error {
	s.mu.RLock()
	sender, ok := s.senders[channel]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown channel: %s", channel)
	}

	logger := s.logger.With().
		Str("request_id", uuid.NewString()).
		Str("channel", channel).
		Str("sender", senderID).
		Logger()
	ctx = logger.WithContext(ctx)

	s.metrics.MessageReceived(channel)
	logger.Info().Int("length", len(text)).Msg("Message received")

	reply, err := s.sessionUC.Handle(ctx, senderID, text)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to handle message")
		s.metrics.Reply(metrics.OutcomeError)
		reply = ErrorReply
	}

	if err := sender.SendText(ctx, senderID, reply); err != nil {
		s.metrics.SendError(channel)
		logger.Error().Err(err).Msg("Failed to send reply")
		return fmt.Errorf("send reply: %w", err)
	}

	logger.Debug().Msg("Reply sent")
	return nil
}
