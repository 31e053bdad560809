package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/joshua2020181/textgpt/internal/biz/domain"
	"github.com/joshua2020181/textgpt/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sessionRepo implements the Session repository
type sessionRepo struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSessionRepo creates a new Session repository.
// Failing here is fatal for the caller: the process must not serve without a store.
func NewSessionRepo(dbPath string) (repo.SessionRepo, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sql.Open is lazy; make sure the file is actually usable
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Create table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			sender_id TEXT PRIMARY KEY,
			total_received INTEGER NOT NULL DEFAULT 0,
			total_sent INTEGER NOT NULL DEFAULT 0,
			received_today INTEGER NOT NULL DEFAULT 0,
			history TEXT NOT NULL DEFAULT '[]',
			last_reset INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_last_reset ON sessions(last_reset)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &sessionRepo{
		db:     db,
		logger: log.Logger.With().Str("component", "store").Logger(),
	}, nil
}

// Get gets session by sender ID
func (r *sessionRepo) Get(ctx context.Context, senderID string) (repo.Lookup, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT sender_id, total_received, total_sent, received_today, history, last_reset
		FROM sessions
		WHERE sender_id = ?
	`, senderID)

	session, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return repo.Lookup{}, nil
	}
	if err != nil {
		return repo.Lookup{}, fmt.Errorf("failed to query session: %w", err)
	}

	return repo.Lookup{Session: session, Found: true}, nil
}

// Upsert creates or replaces a session in a single statement
func (r *sessionRepo) Upsert(ctx context.Context, session *domain.Session) error {
	history, err := encodeHistory(session.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (sender_id, total_received, total_sent, received_today, history, last_reset)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(sender_id) DO UPDATE SET
			total_received = excluded.total_received,
			total_sent = excluded.total_sent,
			received_today = excluded.received_today,
			history = excluded.history,
			last_reset = excluded.last_reset
	`,
		session.SenderID,
		session.TotalReceived,
		session.TotalSent,
		session.ReceivedToday,
		history,
		session.LastReset.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// List lists sessions, most recently reset first
func (r *sessionRepo) List(ctx context.Context, limit int) ([]*domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT sender_id, total_received, total_sent, received_today, history, last_reset
		FROM sessions
		ORDER BY last_reset DESC, sender_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// Close closes the database connection
func (r *sessionRepo) Close() error {
	return r.db.Close()
}

// sqliteDSN applies per-connection pragmas; writers wait on each other instead of failing with SQLITE_BUSY
func sqliteDSN(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *sessionRepo) scan(row scanner) (*domain.Session, error) {
	var session domain.Session
	var history string
	var lastReset int64
	if err := row.Scan(&session.SenderID, &session.TotalReceived, &session.TotalSent, &session.ReceivedToday, &history, &lastReset); err != nil {
		return nil, err
	}

	session.LastReset = time.Unix(lastReset, 0).UTC()

	entries, err := decodeHistory(history)
	if err != nil {
		// Recoverable: the manager re-seeds the prompt on an empty history
		r.logger.Warn().Err(err).Str("sender", session.SenderID).Msg("Discarding malformed history")
		entries = nil
	}
	session.History = entries

	return &session, nil
}

// storedEntry is the persisted shape of a history entry
type storedEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func encodeHistory(history []domain.HistoryEntry) (string, error) {
	entries := make([]storedEntry, 0, len(history))
	for _, e := range history {
		if !e.Role.Valid() {
			return "", fmt.Errorf("invalid role %q", e.Role)
		}
		entries = append(entries, storedEntry{Role: string(e.Role), Content: e.Content})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeHistory(data string) ([]domain.HistoryEntry, error) {
	var entries []storedEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	var history []domain.HistoryEntry
	for i, e := range entries {
		role, err := domain.ParseRole(e.Role)
		if err != nil {
			return nil, fmt.Errorf("history entry %d: %w", i, err)
		}
		history = append(history, domain.HistoryEntry{Role: role, Content: e.Content})
	}
	return history, nil
}
