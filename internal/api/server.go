package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"
	"github.com/joshua2020181/textgpt/internal/metrics"
	"github.com/joshua2020181/textgpt/internal/service"
)

// Receiver processes one inbound message and delivers the reply
type Receiver interface {
	Receive(ctx context.Context, channel, senderID, text string) error
}

// SessionReader is the read-only session view exposed to operators
type SessionReader interface {
	GetSession(ctx context.Context, senderID string) (repo.Lookup, error)
	ListSessions(ctx context.Context, limit int) ([]*domain.Session, error)
}

// Config contains HTTP server configuration
type Config struct {
	Addr string
	// WebhookURL is the public URL Twilio posts to. When set together with
	// TwilioAuthToken, requests without a valid X-Twilio-Signature are rejected.
	WebhookURL      string
	TwilioAuthToken string
}

// Server is the HTTP front: SMS webhook, health, metrics and session inspection
type Server struct {
	receiver Receiver
	sessions SessionReader
	metrics  *metrics.Metrics
	seen     *service.SeenCache
	logger   zerolog.Logger

	webhookURL string
	validator  *twilioclient.RequestValidator

	// Background processing outlives the webhook request
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	addr   string
	server *http.Server
}

// NewServer creates a new API server
func NewServer(cfg Config, receiver Receiver, sessions SessionReader, m *metrics.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		receiver: receiver,
		sessions: sessions,
		metrics:  m,
		seen:     service.NewSeenCache(service.DefaultDedupWindow),
		logger:   log.Logger.With().Str("component", "api").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		addr:     cfg.Addr,
	}
	if cfg.WebhookURL != "" && cfg.TwilioAuthToken != "" {
		v := twilioclient.NewRequestValidator(cfg.TwilioAuthToken)
		s.validator = &v
		s.webhookURL = cfg.WebhookURL
	}
	return s
}

// Handler returns the HTTP handler with all routes registered
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Inbound SMS
	mux.HandleFunc("POST /sms", s.handleSMS)

	// Session inspection
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)

	mux.Handle("GET /metrics", s.metrics.Handler())

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the HTTP server and blocks until it is stopped
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", s.addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops accepting requests and waits for in-flight messages until ctx is done
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown deadline reached with messages still in flight")
		if err == nil {
			err = ctx.Err()
		}
	}
	s.cancel()
	return err
}

// Wait blocks until all background message processing has finished
func (s *Server) Wait() {
	s.wg.Wait()
}
