package data

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"
)

const (
	ProviderOpenAI     = "openai"
	defaultOpenAIModel = "gpt-4o"
)

// chatCompleter is the subset of *openai.Client used here
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// openaiRepo implements the completion repository over an OpenAI-compatible API
type openaiRepo struct {
	client chatCompleter
	model  string
}

// NewOpenAIRepo creates an OpenAI completion repository
func NewOpenAIRepo(cfg CompletionConfig) repo.CompletionRepo {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &openaiRepo{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Provider returns the provider name
func (r *openaiRepo) Provider() string {
	return ProviderOpenAI
}

// Complete sends the history and returns the first choice
func (r *openaiRepo) Complete(ctx context.Context, history []domain.HistoryEntry) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: toOpenAIMessages(history),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(history []domain.HistoryEntry) []openai.ChatCompletionMessage {
	prompt, turns := splitPrompt(history)

	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, e := range prompt {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: e.Content})
	}
	for _, e := range turns {
		role := openai.ChatMessageRoleAssistant
		if e.Role == domain.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: e.Content})
	}
	return messages
}
