package domain

import (
	"fmt"
	"time"
)

// QuotaWindow is the length of the rolling daily window
const QuotaWindow = 24 * time.Hour

// Session represents the per-sender usage and history entity
type Session struct {
	SenderID      string
	TotalReceived int
	TotalSent     int
	ReceivedToday int
	LastReset     time.Time // Start of the current quota window
	History       []HistoryEntry
}

// QuotaConfig represents quota configuration (value object)
type QuotaConfig struct {
	DailyLimit int // Max inbound messages per window; <= 0 disables the quota
}

// NewSession creates an unsaved session for a first-time sender
func NewSession(senderID string, now time.Time) *Session {
	return &Session{
		SenderID:  senderID,
		LastReset: now,
	}
}

// SeedPrompt inserts the system prompt if history is empty
func (s *Session) SeedPrompt(prompt string) bool {
	if len(s.History) > 0 {
		return false
	}
	s.History = append(s.History, HistoryEntry{Role: RoleSystem, Content: prompt})
	return true
}

// ResetIfDue starts a new quota window once the current one has elapsed
func (s *Session) ResetIfDue(now time.Time) bool {
	if now.Before(s.NextReset()) {
		return false
	}
	s.ReceivedToday = 0
	s.LastReset = now
	return true
}

// NextReset returns the instant the current window ends
func (s *Session) NextReset() time.Time {
	return s.LastReset.Add(QuotaWindow)
}

// RecordInbound counts an inbound message.
// ReceivedToday saturates at the daily limit so a blocked sender never drifts above it.
func (s *Session) RecordInbound(cfg QuotaConfig) {
	s.TotalReceived++
	if cfg.DailyLimit > 0 && s.ReceivedToday >= cfg.DailyLimit {
		return
	}
	s.ReceivedToday++
}

// OverQuota checks whether the sender has hit the daily limit.
// A non-positive limit means unlimited.
func (s *Session) OverQuota(cfg QuotaConfig) bool {
	if cfg.DailyLimit <= 0 {
		return false
	}
	return s.ReceivedToday >= cfg.DailyLimit
}

// RecordReply counts an outbound reply
func (s *Session) RecordReply() {
	s.TotalSent++
}

// Append adds a turn to the history
func (s *Session) Append(role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("append history: invalid role %q", role)
	}
	s.History = append(s.History, HistoryEntry{Role: role, Content: content})
	return nil
}

// Clone returns a deep copy so callers can't alias the history slice
func (s *Session) Clone() *Session {
	c := *s
	c.History = append([]HistoryEntry(nil), s.History...)
	return &c
}

// Summary is the read-only operator view of a session
type Summary struct {
	SenderID      string    `json:"sender_id"`
	TotalReceived int       `json:"total_received"`
	TotalSent     int       `json:"total_sent"`
	ReceivedToday int       `json:"received_today"`
	LastReset     time.Time `json:"last_reset"`
	NextReset     time.Time `json:"next_reset"`
	HistoryLength int       `json:"history_length"`
}

// Summarize returns the session's counters without its history
func (s *Session) Summarize() Summary {
	return Summary{
		SenderID:      s.SenderID,
		TotalReceived: s.TotalReceived,
		TotalSent:     s.TotalSent,
		ReceivedToday: s.ReceivedToday,
		LastReset:     s.LastReset,
		NextReset:     s.NextReset(),
		HistoryLength: len(s.History),
	}
}
