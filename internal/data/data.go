package data

import (
	"github.com/joshua2020181/textgpt/internal/biz/repo"
	"github.com/joshua2020181/textgpt/internal/infra/feishu"
)

// Repositories contains all repositories
type Repositories struct {
	Session    repo.SessionRepo
	Completion repo.CompletionRepo
	SMS        repo.MessageRepo // nil when Twilio is not configured
	Feishu     repo.MessageRepo // nil when Feishu is not configured
}

// NewRepositories creates all repositories
func NewRepositories(
	sessionDBPath string,
	completion CompletionConfig,
	twilio TwilioConfig,
	feishuClient *feishu.Client,
) (*Repositories, error) {
	completionRepo, err := NewCompletionRepo(completion)
	if err != nil {
		return nil, err
	}

	sessionRepo, err := NewSessionRepo(sessionDBPath)
	if err != nil {
		return nil, err
	}

	repos := &Repositories{
		Session:    sessionRepo,
		Completion: completionRepo,
	}
	if twilio.AccountSID != "" {
		repos.SMS = NewTwilioRepo(twilio)
	}
	if feishuClient != nil {
		repos.Feishu = NewFeishuRepo(feishuClient)
	}
	return repos, nil
}

// Close releases held resources
func (r *Repositories) Close() error {
	return r.Session.Close()
}
