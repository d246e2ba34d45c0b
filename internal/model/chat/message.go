package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role 标识消息的发送方。
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message 是会话记录中的一条消息。Image 为 URL 或 data URI，可为空。
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMessage assigns an id and timestamp.
func NewMessage(role Role, text, image string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Image:     image,
		CreatedAt: time.Now().UTC(),
	}
}

const (
	userLabel  = "👤 العميل"
	modelLabel = "🤖 E-stock Bot"
	imageTag   = " [مرفق صورة]"
)

// FormatTranscript 将会话渲染为带角色前缀的纯文本，消息之间空一行。
func FormatTranscript(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		label := modelLabel
		if msg.Role == RoleUser {
			label = userLabel
		}
		line := label + ": " + msg.Text
		if msg.Image != "" {
			line += imageTag
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n\n")
}
