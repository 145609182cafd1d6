package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/relaycore/relaycore/internal/domain"
)

// Redis is a queue adapter backed by a Redis list. Producers LPUSH JSON
// envelopes; downstream consumers BRPOP from the same key.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	return &Redis{client: client, key: key}
}

func (q *Redis) Add(ctx context.Context, e domain.NormalizedEvent) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return "", fmt.Errorf("redis lpush: %w", err)
	}
	return e.ID, nil
}

var _ Queue = (*Redis)(nil)
