package chat

import (
	"context"
	"time"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/internal/service/summary"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

// 持久化失败时写入的兜底日志字段。
const (
	fallbackUserQuery   = "Error saving detail"
	fallbackBotResponse = "Session ended with error"
	fallbackClientName  = "Error"
)

// Finalizer 把一次会话落成一条对话日志并清除其自动保存快照。
type Finalizer struct {
	logs      chat.LogStore
	autosave  chat.AutosaveStore
	extractor summary.Extractor
	log       *logger.Logger
	now       func() time.Time
}

// NewFinalizer builds a finalizer. extractor may be nil, in which case defaults are used.
func NewFinalizer(logs chat.LogStore, autosave chat.AutosaveStore, extractor summary.Extractor, log *logger.Logger) *Finalizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Finalizer{
		logs:      logs,
		autosave:  autosave,
		extractor: extractor,
		log:       log,
		now:       time.Now,
	}
}

// Finalize 总是会返回日志 ID（即会话 ID），错误只记录不上抛。
// 流程：抽取摘要 → 写日志（失败则写兜底日志）→ 删除自动保存。
func (f *Finalizer) Finalize(ctx context.Context, sessionID string, messages []chat.Message, startedAt time.Time) string {
	ctx = context.WithoutCancel(ctx)

	details := summary.Defaults()
	if len(messages) > 1 && f.extractor != nil {
		extracted, err := f.extractor.Extract(ctx, messages)
		if err != nil {
			f.log.Warn("summary extraction failed, using defaults", "session_id", sessionID, "error", err)
		} else {
			details = extracted
		}
	}

	entry := chat.Log{
		ID:          sessionID,
		Timestamp:   startedAt,
		Duration:    f.now().Sub(startedAt).Seconds(),
		UserQuery:   chat.FormatTranscript(messages),
		BotResponse: details.Summary,
		ClientName:  details.ClientName,
	}
	if err := f.logs.AppendLog(ctx, entry); err != nil {
		f.log.Error("persist chat log failed", "session_id", sessionID, "error", err)
		fallback := chat.Log{
			ID:          sessionID,
			Timestamp:   startedAt,
			Duration:    entry.Duration,
			UserQuery:   fallbackUserQuery,
			BotResponse: fallbackBotResponse,
			ClientName:  fallbackClientName,
		}
		if err := f.logs.AppendLog(ctx, fallback); err != nil {
			f.log.Error("persist fallback log failed", "session_id", sessionID, "error", err)
		}
	}

	if f.autosave != nil {
		if err := f.autosave.DeleteAutosave(ctx, sessionID); err != nil {
			f.log.Warn("delete autosave failed", "session_id", sessionID, "error", err)
		}
	}

	f.log.Info("session finalized", "session_id", sessionID, "messages", len(messages), "client", details.ClientName)
	return sessionID
}
