package domain

import (
	"errors"
	"time"
)

var (
	ErrMissingSource  = errors.New("raw input: source is required")
	ErrMissingType    = errors.New("raw input: type is required")
	ErrMissingPayload = errors.New("raw input: payload must not be nil")
)

// RawDispatchInput is a producer-supplied event description, not yet canonical.
// Producers include channel adapters ("slack"), the scheduler ("scheduler"),
// and internal APIs.
type RawDispatchInput struct {
	Source  string         `json:"source"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Validate enforces the raw-input invariants: source and type are non-empty
// and payload is present (it may be empty, but never nil).
func (r RawDispatchInput) Validate() error {
	if r.Source == "" {
		return ErrMissingSource
	}
	if r.Type == "" {
		return ErrMissingType
	}
	if r.Payload == nil {
		return ErrMissingPayload
	}
	return nil
}

// NormalizedEvent is the canonical, queue-ready form of a raw input.
// Constructed once by the normalizer, immutable thereafter; ownership passes
// to the queue adapter on successful enqueue.
type NormalizedEvent struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Type   string `json:"type"`

	Payload map[string]any `json:"payload"`

	// Timestamp is assignment time, monotonically non-decreasing per process.
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID marks the event as request-scoped; when set, the event
	// bypasses content-based dedup.
	CorrelationID string `json:"correlation_id,omitempty"`
}
