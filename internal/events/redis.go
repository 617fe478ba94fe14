package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const DefaultChannel = "minting:events"

// RedisPublisher pushes every event as JSON to a pub/sub channel so that
// dashboards can follow a run live.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	timeout time.Duration
	log     *slog.Logger
}

func NewRedisPublisher(client redis.UniversalClient, channel string,
	timeout time.Duration) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		timeout: timeout,
		log:     slog.With("component", "redis-publisher"),
	}
}

func (p *RedisPublisher) Notify(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.log.Error("event marshalling error", "kind", e.Kind, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.Error("couldn't publish event", "kind", e.Kind, "run", e.RunID, "error", err)
	}
}
