// Package queue defines the durable work-queue contract and its adapters.
package queue

import (
	"context"

	"github.com/relaycore/relaycore/internal/domain"
)

// Queue accepts normalized events for downstream processing.
// Add must be durable before returning success and safe to call
// concurrently from multiple producers. No ordering guarantee is required
// beyond FIFO-per-key at the adapter's discretion.
type Queue interface {
	Add(ctx context.Context, e domain.NormalizedEvent) (string, error)
}

// Memory is a channel-backed queue for tests and single-process
// deployments. Add blocks when the buffer is full rather than dropping.
type Memory struct {
	ch chan domain.NormalizedEvent
}

func NewMemory(buffer int) *Memory {
	return &Memory{ch: make(chan domain.NormalizedEvent, buffer)}
}

func (q *Memory) Add(ctx context.Context, e domain.NormalizedEvent) (string, error) {
	select {
	case q.ch <- e:
		return e.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Events exposes the consumer side of the queue.
func (q *Memory) Events() <-chan domain.NormalizedEvent {
	return q.ch
}

var _ Queue = (*Memory)(nil)
