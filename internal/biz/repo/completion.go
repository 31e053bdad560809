package repo

import (
	"context"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
)

// CompletionRepo is the LLM completion interface
type CompletionRepo interface {
	// Complete sends the ordered history and returns the first candidate reply.
	// Empty or missing candidates are reported as errors.
	Complete(ctx context.Context, history []domain.HistoryEntry) (string, error)

	// Provider returns the provider name (for logs and metrics)
	Provider() string
}
