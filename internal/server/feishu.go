package server

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joshua2020181/textgpt/internal/infra/feishu"
	"github.com/joshua2020181/textgpt/internal/service"
)

// Receiver processes one inbound message and delivers the reply
type Receiver interface {
	Receive(ctx context.Context, channel, senderID, text string) error
}

// FeishuClient is the event source used by the server
type FeishuClient interface {
	OnMessage(handler feishu.MessageHandler)
	Start(ctx context.Context) error
	Stop()
}

// FeishuServer feeds Feishu private messages into the conversation service
type FeishuServer struct {
	feishuClient FeishuClient
	receiver     Receiver
	seen         *service.SeenCache
	logger       zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(feishuClient FeishuClient, receiver Receiver) *FeishuServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &FeishuServer{
		feishuClient: feishuClient,
		receiver:     receiver,
		seen:         service.NewSeenCache(service.DefaultDedupWindow),
		logger:       log.Logger.With().Str("component", "feishu-server").Logger(),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start registers the handler and blocks on the Feishu connection
func (s *FeishuServer) Start() error {
	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start(s.ctx)
}

// Stop disconnects and waits for in-flight messages until ctx is done
func (s *FeishuServer) Stop(ctx context.Context) {
	s.feishuClient.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown deadline reached with messages still in flight")
	}
	s.cancel()
}

// handleMessage registers the message for draining and processes it in the background
func (s *FeishuServer) handleMessage(msg *feishu.Message) {
	// Feishu redelivers when the ACK is late
	if s.seen.MarkSeen(msg.MsgID) {
		s.logger.Debug().Str("msg_id", msg.MsgID).Msg("Duplicate message ignored")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.receiver.Receive(s.ctx, service.ChannelFeishu, msg.SenderID, msg.Text); err != nil {
			s.logger.Error().Err(err).Str("msg_id", msg.MsgID).Msg("Failed to process message")
		}
	}()
}
