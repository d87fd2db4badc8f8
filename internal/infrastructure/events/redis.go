// Package events provides the Redis-backed event publisher. Events go
// out over pub/sub after the originating transaction committed; a lost
// message is acceptable, a failed request because of Redis is not.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"restock/internal/domain/events"
	"restock/pkg/logger"
)

// channelPrefix namespaces the pub/sub channels. The full channel name
// is prefix + event type, e.g. "restock:events:stock.movement".
const channelPrefix = "restock:events:"

// publishTimeout bounds one publish attempt so a wedged Redis cannot
// hold the request goroutine.
const publishTimeout = 2 * time.Second

// RedisPublisher implements events.Publisher over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher on an existing client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

var _ events.Publisher = (*RedisPublisher)(nil)

// Publish sends one event. Errors are logged and dropped; by the time
// events flush the transaction has committed and there is nothing left
// to fail.
func (p *RedisPublisher) Publish(ctx context.Context, event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "marshal event", "type", event.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	channel := channelPrefix + event.Type
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		logger.Warn(ctx, "publish event failed", "type", event.Type, "channel", channel, "error", err)
	}
}

// Close releases the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
