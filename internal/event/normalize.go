// Package event turns raw dispatch inputs into canonical, uniquely keyed
// events and computes their dedup fingerprints.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relaycore/relaycore/internal/domain"
)

// Normalizer assigns identity and time to raw inputs. Timestamps are clamped
// so they never decrease within a process, even if the wall clock steps back.
type Normalizer struct {
	mu    sync.Mutex
	clock func() time.Time
	last  time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{clock: time.Now}
}

// Normalize builds a canonical event from a raw input. A fresh id is minted
// on every call; ids are never reused. Payload contents pass through
// opaquely — validation beyond the raw-input invariants is a downstream
// concern.
func (n *Normalizer) Normalize(raw domain.RawDispatchInput, correlationID string) (domain.NormalizedEvent, error) {
	if err := raw.Validate(); err != nil {
		return domain.NormalizedEvent{}, err
	}

	n.mu.Lock()
	ts := n.clock().UTC()
	if ts.Before(n.last) {
		ts = n.last
	}
	n.last = ts
	n.mu.Unlock()

	return domain.NormalizedEvent{
		ID:            uuid.New().String(),
		Source:        raw.Source,
		Type:          raw.Type,
		Payload:       raw.Payload,
		Timestamp:     ts,
		CorrelationID: correlationID,
	}, nil
}

// Key derives the dedup fingerprint for a normalized event. It is a pure
// function of the event alone, so the key is reproducible from a persisted
// or logged event.
//
// With a correlation id the event is request-scoped and every call is
// unique: the key incorporates the event's own id. Without one, the key is
// a stable hash of source, type, and the canonicalized payload, so
// semantically identical inputs collapse.
func Key(e domain.NormalizedEvent) string {
	if e.CorrelationID != "" {
		return e.Source + ":" + e.Type + ":" + e.ID
	}

	// encoding/json emits map keys in sorted order, which makes the
	// marshalled payload a stable canonical form.
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		payload = []byte("{}")
	}

	h := sha256.New()
	h.Write([]byte(e.Source))
	h.Write([]byte{'|'})
	h.Write([]byte(e.Type))
	h.Write([]byte{'|'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
