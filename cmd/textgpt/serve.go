package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/joshua2020181/textgpt/internal/api"
	"github.com/joshua2020181/textgpt/internal/biz/usecase"
	"github.com/joshua2020181/textgpt/internal/data"
	"github.com/joshua2020181/textgpt/internal/infra/feishu"
	"github.com/joshua2020181/textgpt/internal/metrics"
	"github.com/joshua2020181/textgpt/internal/server"
	"github.com/joshua2020181/textgpt/internal/service"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the SMS webhook (and Feishu, when configured)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(os.Stdout)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var feishuClient *feishu.Client
	if cfg.Feishu.Enabled() {
		feishuClient = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	}

	// Initialize repository layer; an unusable store is fatal
	repos, err := data.NewRepositories(
		cfg.SessionDBPath,
		cfg.Completion,
		data.TwilioConfig{
			AccountSID:  cfg.Twilio.AccountSID,
			AuthToken:   cfg.Twilio.AuthToken,
			PhoneNumber: cfg.Twilio.PhoneNumber,
		},
		feishuClient,
	)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()

	log.Info().
		Str("db", cfg.SessionDBPath).
		Str("provider", repos.Completion.Provider()).
		Int("daily_limit", cfg.DailyLimit).
		Msg("Repositories ready")

	m := metrics.NewMetrics()

	// Initialize usecase and service layers
	sessionUC := usecase.NewSessionUsecase(repos.Session, repos.Completion, cfg.ToSessionConfig(), usecase.WithMetrics(m))
	convSvc := service.NewConversationService(sessionUC, m)
	if repos.SMS != nil {
		convSvc.RegisterChannel(service.ChannelSMS, repos.SMS)
	}
	if repos.Feishu != nil {
		convSvc.RegisterChannel(service.ChannelFeishu, repos.Feishu)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)

	apiServer := api.NewServer(api.Config{
		Addr:            cfg.ListenAddr,
		WebhookURL:      cfg.Twilio.WebhookURL,
		TwilioAuthToken: cfg.Twilio.AuthToken,
	}, convSvc, sessionUC, m)
	go func() {
		errCh <- apiServer.Start()
	}()

	var feishuServer *server.FeishuServer
	if feishuClient != nil {
		feishuServer = server.NewFeishuServer(feishuClient, convSvc)
		go func() {
			errCh <- feishuServer.Start()
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err = <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if feishuServer != nil {
		feishuServer.Stop(shutdownCtx)
	}
	if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil {
		log.Warn().Err(stopErr).Msg("HTTP server shutdown")
	}

	return err
}
