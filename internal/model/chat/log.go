package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Log is the persisted summary of one finished conversation.
type Log struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Duration    float64   `json:"duration"`
	UserQuery   string    `json:"userQuery"`
	BotResponse string    `json:"botResponse"`
	ClientName  string    `json:"clientName"`
}

// Feedback 是用户对一次会话的评分。
type Feedback struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ChatID    string    `json:"chatId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
}

var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrChatIDMissing = errors.New("chat id is required")
)

// Validate checks the rating range and chat reference.
func (f Feedback) Validate() error {
	if strings.TrimSpace(f.ChatID) == "" {
		return ErrChatIDMissing
	}
	if f.Rating < 1 || f.Rating > 5 {
		return ErrInvalidRating
	}
	return nil
}

// Snapshot 是进行中会话的自动保存记录，按会话 ID 存储。
type Snapshot struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LogStore 持久化会话日志。AppendLog 按 ID 覆盖写入。
type LogStore interface {
	AppendLog(ctx context.Context, log Log) error
	GetLogs(ctx context.Context, limit int) ([]Log, error)
}

type FeedbackStore interface {
	AddFeedback(ctx context.Context, feedback Feedback) error
	GetFeedback(ctx context.Context, limit int) ([]Feedback, error)
}

// AutosaveStore holds in-flight transcripts so they can be recovered after a crash.
type AutosaveStore interface {
	SaveAutosave(ctx context.Context, snapshot Snapshot) error
	DeleteAutosave(ctx context.Context, sessionID string) error
	ListAutosaves(ctx context.Context) ([]Snapshot, error)
}
