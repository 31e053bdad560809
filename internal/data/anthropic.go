package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"
)

const (
	ProviderAnthropic         = "anthropic"
	defaultAnthropicModel     = "claude-sonnet-4-5"
	defaultAnthropicMaxTokens = 1024
)

// anthropicRepo implements the completion repository over the Anthropic Messages API
type anthropicRepo struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicRepo creates an Anthropic completion repository
func NewAnthropicRepo(cfg CompletionConfig) repo.CompletionRepo {
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicRepo{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

// Provider returns the provider name
func (r *anthropicRepo) Provider() string {
	return ProviderAnthropic
}

// Complete sends the history and returns the text of the reply
func (r *anthropicRepo) Complete(ctx context.Context, history []domain.HistoryEntry) (string, error) {
	system, messages := toAnthropicParams(history)
	if len(messages) == 0 {
		return "", fmt.Errorf("no user turn to complete")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		Messages:  messages,
		MaxTokens: r.maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}

	response, err := r.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("no text content in response")
	}

	return text.String(), nil
}

func toAnthropicParams(history []domain.HistoryEntry) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	prompt, turns := splitPrompt(history)

	var system []anthropic.TextBlockParam
	for _, e := range prompt {
		system = append(system, anthropic.TextBlockParam{Text: e.Content})
	}

	var messages []anthropic.MessageParam
	for _, e := range turns {
		if e.Role == domain.RoleUser {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(e.Content)))
		} else {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(e.Content)))
		}
	}
	return system, messages
}
