// Package pipeline applies dedup policy to raw inputs and hands the
// resulting canonical events to a queue adapter.
package pipeline

import (
	"context"
	"fmt"

	"github.com/relaycore/relaycore/internal/domain"
	"github.com/relaycore/relaycore/internal/event"
	"github.com/relaycore/relaycore/internal/queue"
)

// MetricsSink records pipeline metrics. All methods must be non-blocking
// and fire-and-forget.
type MetricsSink interface {
	EnqueueCompleted(source string, err error)
	DedupSuppressed(source string)
}

// AnalyticsSink records accepted events as a best-effort side effect.
// Implementations handle their own errors; analytics never affects
// enqueue correctness.
type AnalyticsSink interface {
	Record(ctx context.Context, e domain.NormalizedEvent)
}

// Options carries the per-call knobs of an enqueue.
type Options struct {
	// CorrelationID marks the input as request-scoped: the event bypasses
	// content-based dedup and every call is delivered.
	CorrelationID string

	// Dedup is the caller-owned dedup scope. Nil means no dedup at all;
	// a set shared across calls means dedup across those calls. The
	// pipeline never creates dedup state of its own.
	Dedup *event.Set
}

type Pipeline struct {
	normalizer *event.Normalizer
	metrics    MetricsSink   // optional, nil = disabled
	analytics  AnalyticsSink // optional, nil = disabled
}

func New() *Pipeline {
	return &Pipeline{normalizer: event.NewNormalizer()}
}

// WithMetrics attaches a metrics sink to the pipeline.
func (p *Pipeline) WithMetrics(sink MetricsSink) *Pipeline {
	p.metrics = sink
	return p
}

// WithAnalytics attaches an analytics sink to the pipeline.
func (p *Pipeline) WithAnalytics(sink AnalyticsSink) *Pipeline {
	p.analytics = sink
	return p
}

// Enqueue normalizes raw, applies dedup policy, and hands the event to q.
// It returns the id under which the event was accepted.
//
// When the dedup set already holds the event's key, the call is a no-op and
// returns the freshly minted event id without enqueueing. The caller cannot
// distinguish that from a real enqueue by id alone; the metrics sink counts
// suppressions instead.
//
// The dedup key is recorded before the adapter is called, so a failed Add
// still suppresses later duplicates of the same key for the lifetime of the
// set. That trades perfect delivery for protecting downstream systems from
// duplicate storms.
func (p *Pipeline) Enqueue(ctx context.Context, q queue.Queue, raw domain.RawDispatchInput, opts Options) (string, error) {
	e, err := p.normalizer.Normalize(raw, opts.CorrelationID)
	if err != nil {
		p.recordEnqueue(raw.Source, err)
		return "", err
	}

	if opts.Dedup != nil {
		if !opts.Dedup.CheckAndAdd(event.Key(e)) {
			if p.metrics != nil {
				p.metrics.DedupSuppressed(e.Source)
			}
			return e.ID, nil
		}
	}

	id, err := q.Add(ctx, e)
	p.recordEnqueue(e.Source, err)
	if err != nil {
		return "", fmt.Errorf("queue add: %w", err)
	}

	if p.analytics != nil {
		p.analytics.Record(ctx, e)
	}

	return id, nil
}

func (p *Pipeline) recordEnqueue(source string, err error) {
	if p.metrics != nil {
		p.metrics.EnqueueCompleted(source, err)
	}
}
