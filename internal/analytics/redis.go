// Package analytics counts enqueued events in Redis, bucketed by time
// window, for per-source and per-type traffic reporting.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relaycore/relaycore/internal/domain"
	"github.com/relaycore/relaycore/internal/pipeline"
)

var _ pipeline.AnalyticsSink = (*RedisSink)(nil)

// DefaultRetention is how long counter keys live without an explicit
// retention.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{
		client:    client,
		window:    time.Minute,
		retention: DefaultRetention,
	}
}

// WithWindow sets the counter bucket width. Supported: 1m, 5m, 1h.
func (s *RedisSink) WithWindow(window time.Duration) *RedisSink {
	s.window = window
	return s
}

// WithRetention sets how long counter keys are kept.
func (s *RedisSink) WithRetention(retention time.Duration) *RedisSink {
	s.retention = retention
	return s
}

// Record increments the source:type counter for the event's time bucket.
// Counting is best effort: a Redis failure is logged and never surfaces
// to the enqueue path.
func (s *RedisSink) Record(ctx context.Context, e domain.NormalizedEvent) {
	key := buildKey(e.Source, e.Type, e.Timestamp, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}

func buildKey(source, eventType string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("relaycore:events:%s:%s:%s", source, eventType, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}
