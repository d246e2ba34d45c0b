package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/modernsoft/estock-support/backend/internal/model/chat"
	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

const (
	recoveredBotResponse = "جلسة غير مكتملة (تم الاسترداد تلقائياً)"
	recoveredClientName  = "زائر (جلسة مستعادة)"
)

// Recover 把上次进程遗留的自动保存快照转成日志，并无条件删除快照。
// 只能在启动阶段、任何会话创建之前调用。时长按快照开始时间到 now 计算。
// 返回写入日志的条数。
func Recover(ctx context.Context, autosave chat.AutosaveStore, logs chat.LogStore, now time.Time, log *logger.Logger) (int, error) {
	if log == nil {
		log = logger.Nop()
	}

	snapshots, err := autosave.ListAutosaves(ctx)
	if err != nil {
		return 0, fmt.Errorf("list autosaves: %w", err)
	}

	recovered := 0
	for _, snap := range snapshots {
		if len(snap.Messages) > 1 {
			entry := chat.Log{
				ID:          snap.SessionID,
				Timestamp:   snap.StartedAt,
				Duration:    now.Sub(snap.StartedAt).Seconds(),
				UserQuery:   chat.FormatTranscript(snap.Messages),
				BotResponse: recoveredBotResponse,
				ClientName:  recoveredClientName,
			}
			if entry.Duration < 0 {
				entry.Duration = 0
			}
			if err := logs.AppendLog(ctx, entry); err != nil {
				log.Error("recover session log failed", "session_id", snap.SessionID, "error", err)
			} else {
				recovered++
			}
		}

		if err := autosave.DeleteAutosave(ctx, snap.SessionID); err != nil {
			log.Warn("delete recovered autosave failed", "session_id", snap.SessionID, "error", err)
		}
	}

	if len(snapshots) > 0 {
		log.Info("abandoned sessions processed", "found", len(snapshots), "recovered", recovered)
	}
	return recovered, nil
}
