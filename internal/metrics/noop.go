package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                            {}
func (n *NoopSink) TickCompleted(duration time.Duration, fired int, err error) {}
func (n *NoopSink) TasksPendingUpdate(count int)                            {}
func (n *NoopSink) TaskScheduled()                                          {}
func (n *NoopSink) TaskCancelled(found bool)                                {}
func (n *NoopSink) EnqueueCompleted(source string, err error)               {}
func (n *NoopSink) DedupSuppressed(source string)                           {}
func (n *NoopSink) DispatchCompleted(statusClass string, d time.Duration)   {}
func (n *NoopSink) ReloadSignalReceived(scope string)                       {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                       {}
func (n *NoopSink) LeaderLost(reason string)                                {}

var _ Sink = (*NoopSink)(nil)
