package scheduler

import (
	"context"
	"fmt"

	"github.com/relaycore/relaycore/internal/cron"
	"github.com/relaycore/relaycore/internal/domain"
)

// ScheduleCron materializes the next occurrence of a cron expression as
// a one-shot task. Recurrence is the caller's concern: after the task
// fires, call ScheduleCron again to book the occurrence after that. The
// cron expression and timezone are echoed into the task context so a
// consumer of the fired event can re-book without extra state.
func (s *Scheduler) ScheduleCron(ctx context.Context, expression, timezone, intent string, taskCtx map[string]any) (string, error) {
	sched, err := cron.NewParser().Parse(expression, timezone)
	if err != nil {
		return "", fmt.Errorf("schedule cron: %w", err)
	}

	merged := make(map[string]any, len(taskCtx)+2)
	for k, v := range taskCtx {
		merged[k] = v
	}
	merged["cron"] = expression
	merged["timezone"] = timezone

	return s.Schedule(ctx, domain.ScheduledTask{
		ExecuteAt: sched.NextExecuteAt(s.clock()),
		Intent:    intent,
		Context:   merged,
	})
}
