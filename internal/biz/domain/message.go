package domain

import (
	"fmt"
	"strings"
)

// Role identifies who produced a history entry
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system" // seeded prompt and model replies
)

// ParseRole normalizes a stored role label.
// Legacy labels ("User", "System", "assistant") are accepted; anything else is rejected.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user":
		return RoleUser, nil
	case "system", "assistant":
		return RoleSystem, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the two known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleSystem
}

// HistoryEntry is a single conversation turn (value object)
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
