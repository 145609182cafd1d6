// Package reload carries configuration-reload signals between the core
// service and workers. A signal names a scope; each worker subscribes
// with the scopes it cares about and re-runs its reload hook when one
// arrives.
package reload

import "context"

// Signal is a single reload notification.
type Signal struct {
	Scope string `json:"scope"`
}

// Publisher sends reload signals to every subscriber.
type Publisher interface {
	// Publish fans a signal out for each scope.
	Publish(ctx context.Context, scopes ...string) error
}

// Bus is a subscribable signal source.
type Bus interface {
	// Subscribe delivers signals whose scope is in the given set. An
	// empty set means all scopes. Close the returned subscription to
	// release it.
	Subscribe(ctx context.Context, scopes ...string) (*Subscription, error)
}

// Subscription is a live stream of reload signals.
type Subscription struct {
	ch    chan Signal
	close func()
}

// Signals returns the channel reload signals arrive on. The channel is
// closed when the subscription is closed or its context ends.
func (s *Subscription) Signals() <-chan Signal {
	return s.ch
}

// Close tears the subscription down. Safe to call more than once.
func (s *Subscription) Close() {
	s.close()
}

// scopeSet builds a membership set; nil means all scopes match.
func scopeSet(scopes []string) map[string]struct{} {
	if len(scopes) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

func scopeMatches(set map[string]struct{}, scope string) bool {
	if set == nil {
		return true
	}
	_, ok := set[scope]
	return ok
}
