package reload

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis pub/sub channel reload signals travel on.
const DefaultChannel = "relaycore:reload"

// signalBuffer bounds the per-subscription queue; a slow reload hook
// drops signals rather than stalling the bus.
const signalBuffer = 16

type redisMessage struct {
	Scopes []string `json:"scopes"`
}

// RedisBus implements Publisher and Bus over Redis pub/sub, so reload
// signals reach every worker process regardless of host.
type RedisBus struct {
	client  *redis.Client
	channel string
}

var (
	_ Publisher = (*RedisBus)(nil)
	_ Bus       = (*RedisBus)(nil)
)

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client, channel: DefaultChannel}
}

// Publish sends one message carrying all scopes; subscribers fan it out
// locally.
func (b *RedisBus) Publish(ctx context.Context, scopes ...string) error {
	if len(scopes) == 0 {
		return nil
	}
	payload, err := json.Marshal(redisMessage{Scopes: scopes})
	if err != nil {
		return fmt.Errorf("reload: marshal: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("reload: publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, scopes ...string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	// Receive forces the SUBSCRIBE round-trip so a broken connection
	// surfaces here instead of as a silent dead stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("reload: subscribe: %w", err)
	}

	set := scopeSet(scopes)
	ch := make(chan Signal, signalBuffer)

	var once sync.Once
	sub := &Subscription{
		ch: ch,
		close: func() {
			once.Do(func() { pubsub.Close() })
		},
	}

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				var decoded redisMessage
				if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
					log.Printf("reload: drop malformed message: %v", err)
					continue
				}
				for _, scope := range decoded.Scopes {
					if !scopeMatches(set, scope) {
						continue
					}
					select {
					case ch <- Signal{Scope: scope}:
					default:
						log.Printf("reload: subscriber slow, dropped signal scope=%s", scope)
					}
				}
			}
		}
	}()

	return sub, nil
}
