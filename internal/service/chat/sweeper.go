package chat

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/modernsoft/estock-support/backend/pkg/logger"
)

// StartSweeper 按 cron 表达式周期性地结束空闲会话。调用方负责 Stop。
func StartSweeper(ctx context.Context, svc *Service, schedule string, log *logger.Logger) (*cron.Cron, error) {
	if log == nil {
		log = logger.Nop()
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if ctx.Err() != nil {
			return
		}
		svc.SweepIdle(ctx, svc.now())
	})
	if err != nil {
		return nil, fmt.Errorf("schedule session sweeper %q: %w", schedule, err)
	}
	c.Start()
	log.Info("session sweeper started", "schedule", schedule)
	return c, nil
}
