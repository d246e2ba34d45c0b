package sqlite

import (
	"context"
	"fmt"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
)

// AppendLog upserts by id so a session never produces more than one row.
func (s *Store) AppendLog(ctx context.Context, log chat.Log) error {
	query := `
	INSERT INTO chat_logs (id, timestamp, duration, user_query, bot_response, client_name)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		timestamp = excluded.timestamp,
		duration = excluded.duration,
		user_query = excluded.user_query,
		bot_response = excluded.bot_response,
		client_name = excluded.client_name`
	if _, err := s.db.ExecContext(ctx, query,
		log.ID, log.Timestamp.UnixMilli(), log.Duration,
		log.UserQuery, log.BotResponse, log.ClientName,
	); err != nil {
		return fmt.Errorf("upsert chat log: %w", err)
	}
	return nil
}

// GetLogs returns the most recent logs first.
func (s *Store) GetLogs(ctx context.Context, limit int) ([]chat.Log, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, duration, user_query, bot_response, client_name
		FROM chat_logs ORDER BY timestamp DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query chat logs: %w", err)
	}
	defer rows.Close()

	logs := make([]chat.Log, 0)
	for rows.Next() {
		var l chat.Log
		var ts int64
		if err := rows.Scan(&l.ID, &ts, &l.Duration, &l.UserQuery, &l.BotResponse, &l.ClientName); err != nil {
			return nil, fmt.Errorf("scan chat log: %w", err)
		}
		l.Timestamp = fromMillis(ts)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat logs: %w", err)
	}
	return logs, nil
}

func (s *Store) AddFeedback(ctx context.Context, fb chat.Feedback) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, timestamp, chat_id, rating, comment) VALUES (?, ?, ?, ?, ?)`,
		fb.ID, fb.Timestamp.UnixMilli(), fb.ChatID, fb.Rating, fb.Comment,
	); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *Store) GetFeedback(ctx context.Context, limit int) ([]chat.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, chat_id, rating, comment
		FROM feedback ORDER BY timestamp DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	items := make([]chat.Feedback, 0)
	for rows.Next() {
		var fb chat.Feedback
		var ts int64
		if err := rows.Scan(&fb.ID, &ts, &fb.ChatID, &fb.Rating, &fb.Comment); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		fb.Timestamp = fromMillis(ts)
		items = append(items, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return items, nil
}
