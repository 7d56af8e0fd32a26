package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/okunev/lavka/internal/domain"
	"github.com/okunev/lavka/internal/shared"
)

// LoadSession retrieves the session for a conversation, creating a fully
// initialized default if none is stored yet. Handlers therefore never see a
// partially initialized session.
func (s *SQLiteStore) LoadSession(ctx context.Context, conversationID string) (*domain.Session, error) {
	query := `SELECT state_json, created_at, updated_at FROM chat_sessions WHERE conversation_id = ?`
	row := s.db.QueryRowContext(ctx, query, conversationID)

	var stateJSON string
	var createdAt, updatedAt int64
	err := row.Scan(&stateJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.NewSession(conversationID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(stateJSON), &session); err != nil {
		// A corrupt blob should not strand the conversation; start over.
		slog.Error("corrupt chat session state, resetting", "conversation_id", conversationID, "error", err)
		return domain.NewSession(conversationID), nil
	}
	session.ConversationID = conversationID
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	session.Normalize()
	return &session, nil
}

// SaveSession persists the session state, retrying on SQLITE_BUSY.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	stateJSON, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal chat session: %w", err)
	}

	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err = s.saveSessionOnce(ctx, session.ConversationID, string(stateJSON), session.CreatedAt)
		if err == nil {
			return nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("SaveSession hit SQLITE_BUSY, retrying",
				"conversation_id", session.ConversationID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return fmt.Errorf("save chat session for %s: %w", session.ConversationID, err)
}

func (s *SQLiteStore) saveSessionOnce(ctx context.Context, conversationID, stateJSON string, createdAt time.Time) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	query := `
	INSERT INTO chat_sessions (conversation_id, state_json, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(conversation_id) DO UPDATE SET
		state_json = excluded.state_json,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		conversationID, stateJSON, createdAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert chat session: %w", err)
	}
	return nil
}

// DeleteSession removes a conversation's session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, conversationID string) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete chat session: %w", err)
	}
	return nil
}

// ListExpiredSessions returns the conversation IDs of sessions idle longer
// than ttl.
func (s *SQLiteStore) ListExpiredSessions(ctx context.Context, ttl time.Duration) ([]string, error) {
	threshold := time.Now().Add(-ttl).Unix()
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id FROM chat_sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CleanupExpiredSessions removes sessions idle longer than ttl.
func (s *SQLiteStore) CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return res.RowsAffected()
}
