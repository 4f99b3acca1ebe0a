// Package session persists conversation history and eval records as JSONB
// documents in PostgreSQL, one document per session per collection.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ragline/ragline/internal/chat"
)

// DB is the subset of pgxpool.Pool the store needs. Defined by the
// consumer so tests can substitute a mock.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store manages the history and evals collections.
//
// Appends are read-modify-write with no locking and no version check: the
// document is read, the new items are appended in memory, and the whole
// array is written back. Two concurrent appends to the same session can
// both read the same prior document, in which case the later write wins and
// silently drops the other's items. This lost-update window is a documented
// trade-off; per-session traffic is effectively serial in practice.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// LoadHistory returns the session's conversation history in insertion
// order. An unknown session id is not an error: it yields an empty history,
// since sessions are created implicitly on first append.
func (s *Store) LoadHistory(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT chat_history FROM chat_history WHERE id = $1`, sessionID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug("no history for session", "session_id", sessionID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chat history for session %q: %w", sessionID, err)
	}

	var turns []chat.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decoding chat history for session %q: %w", sessionID, err)
	}
	return turns, nil
}

// AppendHistory appends turns to the session's chat_history document,
// creating the document if it does not exist yet.
func (s *Store) AppendHistory(ctx context.Context, sessionID string, turns []chat.Turn) error {
	items := make([]any, len(turns))
	for i, t := range turns {
		items[i] = t
	}
	if err := s.appendItems(ctx, "chat_history", "chat_history", sessionID, items); err != nil {
		return fmt.Errorf("appending chat history for session %q: %w", sessionID, err)
	}
	s.logger.Debug("appended history", "session_id", sessionID, "count", len(turns))
	return nil
}

// AppendEval appends one eval record to the session's evals document,
// creating the document if it does not exist yet.
func (s *Store) AppendEval(ctx context.Context, sessionID string, record chat.EvalRecord) error {
	if err := s.appendItems(ctx, "chat_evals", "evals", sessionID, []any{record}); err != nil {
		return fmt.Errorf("appending eval record for session %q: %w", sessionID, err)
	}
	s.logger.Debug("appended eval record", "session_id", sessionID)
	return nil
}

// appendItems is the shared read-modify-write. The table and column names
// are fixed call sites above, never caller input.
func (s *Store) appendItems(ctx context.Context, table, column, sessionID string, items []any) error {
	if len(items) == 0 {
		return nil
	}

	existing := []json.RawMessage{}
	var raw []byte
	err := s.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, column, table), sessionID,
	).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// First append creates the document.
	case err != nil:
		return fmt.Errorf("reading document: %w", err)
	default:
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("decoding document: %w", err)
		}
	}

	for _, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encoding item: %w", err)
		}
		existing = append(existing, encoded)
	}

	doc, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	// Write back the full array. Last write wins; see Store docs.
	_, err = s.db.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, %s) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET %s = EXCLUDED.%s`,
		table, column, column, column), sessionID, doc)
	if err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}
