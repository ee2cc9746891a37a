package messaging

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// GoRedisClient adapts a go-redis client to the RedisClient interface.
type GoRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient wraps an existing go-redis client. The caller keeps
// ownership of the client; Close here is a no-op so a shared client
// (e.g., the cache's) can back the bus safely.
func NewGoRedisClient(client *redis.Client) *GoRedisClient {
	return &GoRedisClient{client: client}
}

// Publish publishes a message to a channel.
func (c *GoRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.client.Publish(ctx, channel, message).Err()
}

// Subscribe subscribes to channels and bridges messages onto a channel.
// The returned channel closes when ctx is cancelled.
func (c *GoRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	sub := c.client.Subscribe(ctx, channels...)

	// Confirm the subscription before returning.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the underlying client is shared.
func (c *GoRedisClient) Close() error {
	return nil
}
