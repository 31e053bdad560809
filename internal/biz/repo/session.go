package repo

import (
	"context"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
)

// Lookup is the result of a session lookup.
// Found is false when the sender has never been persisted; Session is nil in that case.
type Lookup struct {
	Session *domain.Session
	Found   bool
}

// SessionRepo is the session repository interface
// Responsible for session persistence (SQLite)
type SessionRepo interface {
	// Get gets a session by sender ID
	Get(ctx context.Context, senderID string) (Lookup, error)

	// Upsert creates or fully replaces the session keyed by SenderID.
	// Must be atomic per key: concurrent writers never produce a merged record.
	Upsert(ctx context.Context, session *domain.Session) error

	// List lists sessions, most active first (for the operator tools)
	List(ctx context.Context, limit int) ([]*domain.Session, error)

	Close() error
}
