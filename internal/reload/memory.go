package reload

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Publisher and Bus, used by tests and
// single-process deployments that have no Redis.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[*Subscription]map[string]struct{}
}

var (
	_ Publisher = (*MemoryBus)(nil)
	_ Bus       = (*MemoryBus)(nil)
)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[*Subscription]map[string]struct{})}
}

func (b *MemoryBus) Publish(ctx context.Context, scopes ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub, set := range b.subs {
		for _, scope := range scopes {
			if !scopeMatches(set, scope) {
				continue
			}
			select {
			case sub.ch <- Signal{Scope: scope}:
			default:
				// Slow subscriber, signal dropped.
			}
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, scopes ...string) (*Subscription, error) {
	ch := make(chan Signal, signalBuffer)

	var once sync.Once
	sub := &Subscription{ch: ch}
	sub.close = func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(ch)
		})
	}

	b.mu.Lock()
	b.subs[sub] = scopeSet(scopes)
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}

	return sub, nil
}
