package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
)

// SaveAutosave 覆盖写入某个会话的快照。
func (s *Store) SaveAutosave(ctx context.Context, snapshot chat.Snapshot) error {
	raw, err := json.Marshal(snapshot.Messages)
	if err != nil {
		return fmt.Errorf("encode autosave messages: %w", err)
	}

	query := `
	INSERT INTO autosaves (session_id, messages_json, started_at, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		messages_json = excluded.messages_json,
		updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query,
		snapshot.SessionID, string(raw), snapshot.StartedAt.UnixMilli(), snapshot.UpdatedAt.UnixMilli(),
	); err != nil {
		return fmt.Errorf("upsert autosave: %w", err)
	}
	return nil
}

func (s *Store) DeleteAutosave(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM autosaves WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete autosave: %w", err)
	}
	return nil
}

// ListAutosaves returns every leftover snapshot, oldest first. A row whose
// messages cannot be decoded is returned with an empty transcript.
func (s *Store) ListAutosaves(ctx context.Context) ([]chat.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, messages_json, started_at, updated_at
		FROM autosaves ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query autosaves: %w", err)
	}
	defer rows.Close()

	snapshots := make([]chat.Snapshot, 0)
	for rows.Next() {
		var snap chat.Snapshot
		var raw string
		var startedAt, updatedAt int64
		if err := rows.Scan(&snap.SessionID, &raw, &startedAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan autosave: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &snap.Messages); err != nil {
			snap.Messages = nil
		}
		snap.StartedAt = fromMillis(startedAt)
		snap.UpdatedAt = fromMillis(updatedAt)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate autosaves: %w", err)
	}
	return snapshots, nil
}
