package redisclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldType    = "type"
	fieldPayload = "payload"
)

// StreamMessage is one entry read back from an event stream.
type StreamMessage struct {
	ID      string
	Type    string
	Payload []byte
}

// StreamPublisher appends typed JSON events to a capped Redis stream.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		maxLen: 100000,
	}
}

func (p *StreamPublisher) Publish(ctx context.Context, eventType string, payload []byte) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			fieldType:    eventType,
			fieldPayload: string(payload),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}

// StreamConsumer reads a stream as one member of a consumer group.
type StreamConsumer struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
}

func NewStreamConsumer(client *redis.Client, stream, group, consumer string, block time.Duration) *StreamConsumer {
	return &StreamConsumer{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		block:    block,
	}
}

// EnsureGroup creates the consumer group (and the stream) if missing.
func (c *StreamConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", c.group, c.stream, err)
	}
	return nil
}

// Read blocks up to the configured duration for new messages. An empty slice
// with a nil error means the block timed out.
func (c *StreamConsumer) Read(ctx context.Context, count int64) ([]StreamMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    c.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", c.stream, err)
	}

	var out []StreamMessage
	for _, s := range streams {
		for _, m := range s.Messages {
			out = append(out, toStreamMessage(m))
		}
	}
	return out, nil
}

// ClaimStale takes over messages other consumers left pending for longer than minIdle.
func (c *StreamConsumer) ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]StreamMessage, error) {
	var out []StreamMessage
	start := "0-0"

	for {
		msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  minIdle,
			Start:    start,
			Count:    count,
		}).Result()
		if err != nil {
			return out, fmt.Errorf("xautoclaim %s: %w", c.stream, err)
		}

		for _, m := range msgs {
			out = append(out, toStreamMessage(m))
		}

		if next == "0-0" || len(msgs) == 0 {
			return out, nil
		}
		start = next
	}
}

func (c *StreamConsumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", c.stream, err)
	}
	return nil
}

func toStreamMessage(m redis.XMessage) StreamMessage {
	msg := StreamMessage{ID: m.ID}
	if v, ok := m.Values[fieldType].(string); ok {
		msg.Type = v
	}
	if v, ok := m.Values[fieldPayload].(string); ok {
		msg.Payload = []byte(v)
	}
	return msg
}
