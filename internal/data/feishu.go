package data

import (
	"context"

	"github.com/joshua2020181/textgpt/internal/biz/repo"
	"github.com/joshua2020181/textgpt/internal/infra/feishu"
)

// feishuRepo implements the message repository over Feishu private chats
type feishuRepo struct {
	client *feishu.Client
}

// NewFeishuRepo creates a new Feishu repository
func NewFeishuRepo(client *feishu.Client) repo.MessageRepo {
	return &feishuRepo{client: client}
}

// SendText sends a text message to the user's open_id
func (r *feishuRepo) SendText(ctx context.Context, openID, text string) error {
	return r.client.SendText(ctx, openID, text)
}
