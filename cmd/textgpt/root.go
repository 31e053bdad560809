package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/joshua2020181/textgpt/internal/conf"
	"github.com/joshua2020181/textgpt/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "textgpt",
	Short: "TextGPT - chat with a language model over SMS",
	Long: `TextGPT relays inbound text messages to a language model and replies
on the same channel, enforcing a per-sender daily message quota and keeping
each sender's conversation history in SQLite.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(serveCmd, mcpCmd, sendCmd)
}

// loadConfig loads configuration and installs the global logger
func loadConfig(logOutput io.Writer) (*conf.Config, error) {
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	cfg.Log.Output = logOutput
	logger.New(cfg.Log)
	return cfg, nil
}
