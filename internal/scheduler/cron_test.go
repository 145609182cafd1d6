package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestScheduleCronMaterializesNextOccurrence(t *testing.T) {
	store := newMockStore()
	rec := &emitRecorder{}
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, store, rec, now)

	id, err := s.ScheduleCron(context.Background(), "0 10 * * *", "UTC", "digest", map[string]any{"channel": "general"})
	if err != nil {
		t.Fatalf("ScheduleCron: %v", err)
	}

	task, ok := store.tasks[id]
	if !ok {
		t.Fatal("materialized task not persisted")
	}
	if task.ExecuteAt != "2024-01-15T10:00:00.000Z" {
		t.Errorf("execute_at = %q, want next 10:00 occurrence", task.ExecuteAt)
	}
	if task.Intent != "digest" {
		t.Errorf("intent = %q, want digest", task.Intent)
	}
	if task.Context["cron"] != "0 10 * * *" || task.Context["timezone"] != "UTC" {
		t.Errorf("context missing recurrence echo: %v", task.Context)
	}
	if task.Context["channel"] != "general" {
		t.Errorf("caller context dropped: %v", task.Context)
	}
}

func TestScheduleCronRejectsBadExpression(t *testing.T) {
	s := newTestScheduler(t, newMockStore(), &emitRecorder{}, time.Now())

	if _, err := s.ScheduleCron(context.Background(), "not a cron", "UTC", "x", nil); err == nil {
		t.Fatal("expected error for invalid expression")
	}
	if len(s.List()) != 0 {
		t.Error("invalid cron landed in timeline")
	}
}
