package conf

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/usecase"
	"github.com/joshua2020181/textgpt/internal/data"
	"github.com/joshua2020181/textgpt/internal/logger"
)

// Config represents application configuration
type Config struct {
	// HTTP listener
	ListenAddr string

	// Quota configuration
	DailyLimit int

	// Completion provider configuration
	Completion data.CompletionConfig
	// Bound on a single completion call
	CompletionTimeout time.Duration

	// Session store connection string
	SessionDBPath string

	// Twilio configuration (optional, enables the SMS channel)
	Twilio TwilioConfig

	// Feishu configuration (optional, enables the Feishu channel)
	Feishu FeishuConfig

	// Prompts configuration (loaded from YAML, SYSTEM_PROMPT wins)
	Prompts *PromptsConfig

	Log logger.Config
}

// TwilioConfig contains Twilio configuration
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	WebhookURL  string // Public webhook URL, enables signature checks
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
}

// Enabled reports whether the SMS channel is configured
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != ""
}

// Enabled reports whether the Feishu channel is configured
func (c FeishuConfig) Enabled() bool {
	return c.AppID != ""
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	// Load prompts from YAML
	prompts, err := LoadPromptsConfig(os.Getenv("PROMPTS_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("SYSTEM_PROMPT"); v != "" {
		prompts.SystemPrompt = v
	}

	dailyLimit, err := getEnvInt("DAILY_MESSAGE_LIMIT", usecase.DefaultSessionConfig.Quota.DailyLimit)
	if err != nil {
		return nil, err
	}
	maxTokens, err := getEnvInt("COMPLETION_MAX_TOKENS", 1024)
	if err != nil {
		return nil, err
	}
	timeoutSeconds, err := getEnvInt("COMPLETION_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	provider := getEnv("COMPLETION_PROVIDER", data.ProviderOpenAI)
	apiKey := os.Getenv("OPENAI_API_KEY")
	if provider == data.ProviderAnthropic {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", "0.0.0.0:3000"),
		DailyLimit: dailyLimit,
		Completion: data.CompletionConfig{
			Provider:  provider,
			APIKey:    apiKey,
			BaseURL:   os.Getenv("OPENAI_BASE_URL"),
			Model:     os.Getenv("COMPLETION_MODEL"),
			MaxTokens: maxTokens,
		},
		CompletionTimeout: time.Duration(timeoutSeconds) * time.Second,
		SessionDBPath:     getEnv("SESSION_DB_PATH", "messages.db"),
		Twilio: TwilioConfig{
			AccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
			PhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
			WebhookURL:  os.Getenv("TWILIO_WEBHOOK_URL"),
		},
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
		},
		Prompts: prompts,
		Log: logger.Config{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: os.Getenv("LOG_PRETTY") == "true",
		},
	}, nil
}

// ToSessionConfig converts to session manager configuration
func (c *Config) ToSessionConfig() usecase.SessionConfig {
	cfg := usecase.DefaultSessionConfig
	cfg.Quota = domain.QuotaConfig{DailyLimit: c.DailyLimit}
	cfg.CompletionTimeout = c.CompletionTimeout
	if c.Prompts != nil {
		cfg.SystemPrompt = c.Prompts.SystemPrompt
		cfg.HelpText = c.Prompts.HelpText
	}
	return cfg
}

// Validate validates the configuration for serving
func (c *Config) Validate() error {
	if c.DailyLimit <= 0 {
		return &ConfigError{Field: "DAILY_MESSAGE_LIMIT", Message: "must be positive"}
	}
	if c.CompletionTimeout <= 0 {
		return &ConfigError{Field: "COMPLETION_TIMEOUT_SECONDS", Message: "must be positive"}
	}
	switch c.Completion.Provider {
	case data.ProviderOpenAI:
		if c.Completion.APIKey == "" {
			return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
		}
	case data.ProviderAnthropic:
		if c.Completion.APIKey == "" {
			return &ConfigError{Field: "ANTHROPIC_API_KEY", Message: "required"}
		}
	default:
		return &ConfigError{Field: "COMPLETION_PROVIDER", Message: "must be openai or anthropic"}
	}
	if !c.Twilio.Enabled() && !c.Feishu.Enabled() {
		return &ConfigError{Field: "TWILIO_ACCOUNT_SID/FEISHU_APP_ID", Message: "at least one channel is required"}
	}
	if c.Twilio.Enabled() && (c.Twilio.AuthToken == "" || c.Twilio.PhoneNumber == "") {
		return &ConfigError{Field: "TWILIO_AUTH_TOKEN/TWILIO_PHONE_NUMBER", Message: "required with TWILIO_ACCOUNT_SID"}
	}
	if c.Feishu.Enabled() && c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_SECRET", Message: "required with FEISHU_APP_ID"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt reads an integer, rejecting malformed values instead of hiding them behind the default
func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("invalid integer %q", v)}
	}
	return parsed, nil
}
