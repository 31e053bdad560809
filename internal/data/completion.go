package data

import (
	"fmt"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"
)

// CompletionConfig contains completion provider configuration
type CompletionConfig struct {
	Provider  string // openai, anthropic
	APIKey    string
	BaseURL   string // OpenAI-compatible endpoint override
	Model     string
	MaxTokens int
}

// NewCompletionRepo creates the completion repository for the configured provider
func NewCompletionRepo(cfg CompletionConfig) (repo.CompletionRepo, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		return NewOpenAIRepo(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicRepo(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", cfg.Provider)
	}
}

// splitPrompt separates the leading system entries (instructions) from the turns.
// System entries after the first user turn are model replies.
func splitPrompt(history []domain.HistoryEntry) (prompt, turns []domain.HistoryEntry) {
	i := 0
	for i < len(history) && history[i].Role == domain.RoleSystem {
		i++
	}
	return history[:i], history[i:]
}
