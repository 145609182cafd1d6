package domain

import "time"

// TimeLayout is the canonical timestamp format for scheduled tasks.
// Fixed-width, zero-padded, always UTC: lexicographic order equals
// chronological order, so due checks are plain string comparisons.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout. The conversion to UTC is what makes
// the trailing literal Z truthful.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// ScheduledTask is a future-dated task held by the scheduler.
type ScheduledTask struct {
	ID string `json:"id"`

	// ExecuteAt is the TimeLayout instant after which the task is eligible
	// to fire.
	ExecuteAt string `json:"execute_at"`

	// Intent is an opaque description of what to do when fired.
	Intent string `json:"intent"`

	// Context is carried through verbatim into the fired event's payload.
	Context map[string]any `json:"context"`
}
