package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joshua2020181/textgpt/internal/biz/usecase"
	"github.com/joshua2020181/textgpt/internal/data"
	"github.com/joshua2020181/textgpt/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve read-only session tools over MCP stdio",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the MCP protocol
	cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}

	sessionRepo, err := data.NewSessionRepo(cfg.SessionDBPath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessionRepo.Close()

	// Read-only: Handle is never called, so no completion provider is needed
	sessionUC := usecase.NewSessionUsecase(sessionRepo, nil, cfg.ToSessionConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return mcp.NewServer(sessionUC, version).Run(ctx)
}
