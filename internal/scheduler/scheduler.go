// Package scheduler holds future-dated tasks and fires them when due.
//
// The durable store is the source of truth; the scheduler keeps an
// in-memory mirror sorted by execute-at so a tick costs O(tasks due).
// Mutations write the store first and memory second, so a crash between
// the two leaves the store consistent and a later Load self-heals memory.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaycore/relaycore/internal/domain"
)

// Source and type stamped on every fired event.
const (
	EventSource = "scheduler"
	EventType   = "task.scheduled"
)

var (
	ErrAlreadyLoaded = errors.New("scheduler: already loaded")
	ErrNotLoaded     = errors.New("scheduler: Load must be called before Start")
	ErrBadExecuteAt  = errors.New("scheduler: execute_at is not a valid timestamp")
)

// Store is the durable persistence contract for scheduled tasks.
type Store interface {
	GetAll(ctx context.Context) ([]domain.ScheduledTask, error)
	// Add persists a task; it fails on duplicate id.
	Add(ctx context.Context, task domain.ScheduledTask) error
	// Remove deletes a task, reporting whether a record existed.
	Remove(ctx context.Context, id string) (bool, error)
}

// EmitFunc receives the event produced by a fired task. Its error is logged
// and never retried: scheduled firing is at-most-once by design.
type EmitFunc func(ctx context.Context, raw domain.RawDispatchInput) error

// MetricsSink records scheduler metrics. All methods must be non-blocking
// and fire-and-forget.
type MetricsSink interface {
	TickStarted()
	TickCompleted(duration time.Duration, fired int, err error)
	TasksPendingUpdate(count int)
	TaskScheduled()
	TaskCancelled(found bool)
}

type Config struct {
	TickInterval time.Duration
}

// DefaultTickInterval is used when Config leaves TickInterval zero.
const DefaultTickInterval = 5 * time.Second

type Scheduler struct {
	config  Config
	store   Store
	emit    EmitFunc
	clock   func() time.Time
	metrics MetricsSink // optional, nil = disabled

	mu       sync.Mutex
	timeline []domain.ScheduledTask // sorted by ExecuteAt ascending
	loaded   bool
	ticking  bool

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func New(config Config, store Store, emit EmitFunc) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	return &Scheduler{
		config: config,
		store:  store,
		emit:   emit,
		clock:  time.Now,
	}
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Load populates the in-memory timeline from the store. It must be called
// exactly once, after construction and before Start.
func (s *Scheduler) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return ErrAlreadyLoaded
	}

	tasks, err := s.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ExecuteAt < tasks[j].ExecuteAt
	})

	s.timeline = tasks
	s.loaded = true
	s.updatePendingLocked()

	log.Printf("scheduler: loaded %d pending tasks", len(tasks))
	return nil
}

// Start begins the periodic due-check. Idempotent: calling Start while
// already running is a no-op. Returns ErrNotLoaded if Load was never
// called.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if !loaded {
		return ErrNotLoaded
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopped = make(chan struct{})

	go s.run(ctx, s.stopped)

	log.Printf("scheduler: started, tick=%s", s.config.TickInterval)
	return nil
}

// Stop halts the periodic check and waits for the tick loop to exit.
// Idempotent and safe to call when not started.
func (s *Scheduler) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.stopped
	s.cancel = nil
	s.stopped = nil

	log.Println("scheduler: stopped")
}

func (s *Scheduler) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processTick(ctx)
		}
	}
}

// Schedule assigns a fresh id, persists the task, and inserts it into the
// sorted timeline. Memory is not mutated unless the store write succeeds.
// The task's ID field, if set, is ignored.
func (s *Scheduler) Schedule(ctx context.Context, task domain.ScheduledTask) (string, error) {
	if _, err := domain.ParseTime(task.ExecuteAt); err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadExecuteAt, task.ExecuteAt)
	}
	if task.Context == nil {
		task.Context = map[string]any{}
	}
	task.ID = uuid.New().String()

	if err := s.store.Add(ctx, task); err != nil {
		return "", fmt.Errorf("persist task: %w", err)
	}

	s.mu.Lock()
	s.insertLocked(task)
	s.updatePendingLocked()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TaskScheduled()
	}
	log.Printf("scheduler: scheduled task=%s execute_at=%s intent=%q", task.ID, task.ExecuteAt, task.Intent)
	return task.ID, nil
}

// Cancel removes a task. The store is consulted first; memory is only
// touched if the store confirms a record was deleted. An unknown id
// returns (false, nil), not an error.
func (s *Scheduler) Cancel(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.Remove(ctx, id)
	if err != nil {
		return false, fmt.Errorf("remove task: %w", err)
	}
	if removed {
		s.mu.Lock()
		s.removeLocked(id)
		s.updatePendingLocked()
		s.mu.Unlock()
		log.Printf("scheduler: cancelled task=%s", id)
	}
	if s.metrics != nil {
		s.metrics.TaskCancelled(removed)
	}
	return removed, nil
}

// List returns a snapshot of the timeline in ascending execute-at order.
// Mutating the returned slice does not affect scheduler state.
func (s *Scheduler) List() []domain.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ScheduledTask, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// processTick fires every task whose execute-at is at or before now, in
// timeline order. Ticks never overlap: a second call while one is in
// flight is a no-op, so a slow store or emit only delays the next check.
func (s *Scheduler) processTick(ctx context.Context) {
	s.mu.Lock()
	if s.ticking {
		s.mu.Unlock()
		return
	}
	s.ticking = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.ticking = false
		s.mu.Unlock()
	}()

	start := s.clock()
	now := domain.FormatTime(start)
	if s.metrics != nil {
		s.metrics.TickStarted()
	}

	fired := 0
	var tickErr error

	for {
		s.mu.Lock()
		if len(s.timeline) == 0 || s.timeline[0].ExecuteAt > now {
			s.mu.Unlock()
			break
		}
		task := s.timeline[0]
		s.timeline = s.timeline[1:]
		s.mu.Unlock()

		emitted, err := s.fire(ctx, task)
		if err != nil {
			// The task is back in the timeline; retrying within this tick
			// would spin against a down store. Give up until the next tick.
			log.Printf("scheduler: task %s error: %v", task.ID, err)
			tickErr = err
			break
		}
		if emitted {
			fired++
		}
	}

	s.mu.Lock()
	s.updatePendingLocked()
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock().Sub(start), fired, tickErr)
	}
}

// fire removes the task from the store and emits its event, reporting
// whether an emit was attempted. If the store removal fails the task goes
// back into the timeline and nothing is emitted; the next tick retries.
// If the store reports no record existed the task was cancelled or fired
// elsewhere, so it is dropped without emitting. Once removal succeeds the
// emit is attempted exactly once: an emit failure is logged and the task
// stays gone (at-most-once).
func (s *Scheduler) fire(ctx context.Context, task domain.ScheduledTask) (bool, error) {
	removed, err := s.store.Remove(ctx, task.ID)
	if err != nil {
		s.mu.Lock()
		s.insertLocked(task)
		s.mu.Unlock()
		return false, fmt.Errorf("remove fired task: %w", err)
	}
	if !removed {
		log.Printf("scheduler: task %s already gone from store, skipping emit", task.ID)
		return false, nil
	}

	raw := domain.RawDispatchInput{
		Source: EventSource,
		Type:   EventType,
		Payload: map[string]any{
			"executeAt": task.ExecuteAt,
			"intent":    task.Intent,
			"context":   task.Context,
		},
	}

	if err := s.emit(ctx, raw); err != nil {
		// Not retried: the task is already removed from both store and
		// memory.
		log.Printf("scheduler: emit failed for task %s (not retried): %v", task.ID, err)
	}

	log.Printf("scheduler: fired task=%s execute_at=%s", task.ID, task.ExecuteAt)
	return true, nil
}

// insertLocked inserts task keeping the timeline sorted by ExecuteAt.
// Caller holds s.mu.
func (s *Scheduler) insertLocked(task domain.ScheduledTask) {
	i := sort.Search(len(s.timeline), func(i int) bool {
		return s.timeline[i].ExecuteAt > task.ExecuteAt
	})
	s.timeline = append(s.timeline, domain.ScheduledTask{})
	copy(s.timeline[i+1:], s.timeline[i:])
	s.timeline[i] = task
}

// removeLocked removes the task with the given id, if present.
// Caller holds s.mu.
func (s *Scheduler) removeLocked(id string) {
	for i, t := range s.timeline {
		if t.ID == id {
			s.timeline = append(s.timeline[:i], s.timeline[i+1:]...)
			return
		}
	}
}

// updatePendingLocked pushes the current timeline depth to the metrics
// sink. Caller holds s.mu.
func (s *Scheduler) updatePendingLocked() {
	if s.metrics != nil {
		s.metrics.TasksPendingUpdate(len(s.timeline))
	}
}
