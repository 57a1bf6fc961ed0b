package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"solana-dex-bot/internal/storage"
)

// Publisher sends payloads over Redis Pub/Sub.
type Publisher struct {
	rdb *redis.Client
}

var _ storage.Publisher = (*Publisher)(nil)

// NewPublisher creates a Publisher backed by the given Client.
func NewPublisher(c *Client) *Publisher {
	return &Publisher{rdb: c.Underlying()}
}

// Publish sends a raw payload to a Pub/Sub channel.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published to channel. The
// subscription ends and the returned channel closes when ctx is done.
func (p *Publisher) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := p.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
