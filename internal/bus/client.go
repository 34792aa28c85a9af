package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hearthlabs/hearth/pkg/Logger"
)

// ErrBusUnavailable is returned when the backing store cannot be reached.
var ErrBusUnavailable = errors.New("stream bus unavailable")

// Streams are trimmed to roughly this many entries; older entries are lost.
const defaultMaxLen = 10000

// Handler processes one delivered message. Returning does not affect
// acknowledgement: messages are always acked after the handler runs, giving
// at-least-once delivery.
type Handler func(ctx context.Context, messageID string, data []byte) error

// Client wraps Redis Streams with the publish/consume-with-ack semantics the
// stage workers rely on.
type Client struct {
	rdb    *redis.Client
	logger *Logger.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, redisURL string, logger *Logger.Logger) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}

	logger.Infow("redis_connected", "url", redisURL)
	return &Client{rdb: rdb, logger: logger}, nil
}

// Close disconnects from Redis.
func (c *Client) Close() error {
	c.logger.Info("redis_disconnected")
	return c.rdb.Close()
}

// Publish appends a record to a stream as a JSON envelope and returns the
// message id assigned by Redis.
func (c *Client) Publish(ctx context.Context, stream string, record any) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode record for %s: %w", stream, err)
	}

	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: map[string]any{"data": string(payload)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("%w: xadd %s: %v", ErrBusUnavailable, stream, err)
	}

	c.logger.Debugw("message_published", "stream", stream, "message_id", id)
	return id, nil
}

// Consume blocks reading new messages for a consumer group, invoking the
// handler for each and acknowledging afterwards. The group is created lazily.
// Malformed entries are acked and dropped; transient errors back off one
// second and resume at the group cursor. Returns when ctx is cancelled.
func (c *Client) Consume(ctx context.Context, stream, group, consumer string, handler Handler) error {
	if err := c.ensureGroup(ctx, stream, group); err != nil {
		return err
	}

	c.logger.Infow("consumer_started", "stream", stream, "group", group, "consumer", consumer)

	for {
		if ctx.Err() != nil {
			c.logger.Infow("consumer_stopped", "stream", stream)
			return ctx.Err()
		}

		res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    1,
			Block:    time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // block timeout, nothing new
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Infow("consumer_stopped", "stream", stream)
				return ctx.Err()
			}
			c.logger.Errorw("consumer_error", "stream", stream, "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, xs := range res {
			for _, msg := range xs.Messages {
				c.dispatch(ctx, stream, group, msg, handler)
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, stream, group string, msg redis.XMessage, handler Handler) {
	raw, ok := msg.Values["data"].(string)
	if !ok || !json.Valid([]byte(raw)) {
		// Poison pill: ack so it never redelivers.
		c.logger.Errorw("message_decode_error", "stream", stream, "message_id", msg.ID)
		c.ack(ctx, stream, group, msg.ID)
		return
	}

	if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
		c.logger.Errorw("handler_error", "stream", stream, "message_id", msg.ID, "error", err)
	}
	c.ack(ctx, stream, group, msg.ID)
}

func (c *Client) ack(ctx context.Context, stream, group, id string) {
	if err := c.rdb.XAck(ctx, stream, group, id).Err(); err != nil {
		c.logger.Errorw("ack_failed", "stream", stream, "message_id", id, "error", err)
	}
}

func (c *Client) ensureGroup(ctx context.Context, stream, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err == nil {
		c.logger.Infow("consumer_group_created", "stream", stream, "group", group)
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("%w: create group %s on %s: %v", ErrBusUnavailable, group, stream, err)
}

// HealthCheck pings the backing store.
func (c *Client) HealthCheck(ctx context.Context) bool {
	return c.rdb.Ping(ctx).Err() == nil
}
