package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"infiya.app/relay/common/logger"
	"infiya.app/relay/internal/model"
)

type ConsumerConfig struct {
	Stream     string        // user's durable log key
	Group      string        // consumer group shared by all relay instances
	Consumer   string        // consumer name within the group
	DeadLetter string        // stream receiving malformed entries
	BatchSize  int64         // entries per read
	Block      time.Duration // how long a read waits for new entries
}

// Entry is one delivered log entry. Err is set when the entry could not be
// parsed into a progress event; the caller decides whether to ack or dead-letter it.
type Entry struct {
	ID    string
	Event model.ProgressEvent
	Err   error
	Raw   redis.XMessage
}

// RedisConsumer reads one user's durable log through a consumer group.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) *RedisConsumer {
	return &RedisConsumer{
		client: client,
		cfg:    cfg,
	}
}

func (c *RedisConsumer) Stream() string {
	return c.cfg.Stream
}

// EnsureGroup creates the group at the start of the log, creating the log if
// needed. An existing group is not an error.
func (c *RedisConsumer) EnsureGroup(ctx context.Context) error {
	// Starting from "0" instead of "$" so entries appended before the group existed are still seen.
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read returns entries never delivered to any consumer of the group.
// An empty batch after the block timeout is not an error.
func (c *RedisConsumer) Read(ctx context.Context) ([]Entry, error) {
	return c.read(ctx, ">", c.cfg.Block)
}

// Reclaim takes over one page of entries that were delivered to any consumer
// of the group but have not been acknowledged for at least minIdle. Claiming
// resets their idle time, so concurrent reclaimers never receive the same
// entry. It returns the cursor for the next page; "0-0" means the pending list
// was scanned to the end.
func (c *RedisConsumer) Reclaim(ctx context.Context, cursor string, minIdle time.Duration) ([]Entry, string, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Stream:    logger.Ptr(c.cfg.Stream),
		Component: "relay.queue.consumer",
	})

	msgs, next, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Start:    cursor,
		Count:    c.cfg.BatchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "0-0", nil
		}
		return nil, "", fmt.Errorf("xautoclaim (stream=%s): %w", c.cfg.Stream, err)
	}

	entries := toEntries(msgs)
	if len(entries) > 0 {
		slog.InfoContext(ctx, "reclaimed stale pending entries",
			"count", len(entries),
			"min_idle", minIdle,
			"consumer", c.cfg.Consumer)
	}
	return entries, next, nil
}

func (c *RedisConsumer) read(ctx context.Context, from string, block time.Duration) ([]Entry, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Stream:    logger.Ptr(c.cfg.Stream),
		Component: "relay.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, from},
		Count:    c.cfg.BatchSize,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var entries []Entry
	// XReadGroup supports multiple streams, but we only read one so this outer loop only runs once.
	for _, stream := range streams {
		entries = append(entries, toEntries(stream.Messages)...)
	}

	if len(entries) > 0 {
		slog.DebugContext(ctx, "read entries from stream",
			"count", len(entries),
			"from", from,
			"consumer", c.cfg.Consumer)
	}

	return entries, nil
}

func toEntries(msgs []redis.XMessage) []Entry {
	entries := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		ev, parseErr := ParseProgressEvent(msg)
		entries = append(entries, Entry{ID: msg.ID, Event: ev, Err: parseErr, Raw: msg})
	}
	return entries
}

func (c *RedisConsumer) Ack(ctx context.Context, id string) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	return nil
}

// DeadLetter copies the entry to the dead-letter stream and then acks it.
func (c *RedisConsumer) DeadLetter(ctx context.Context, e Entry, reason string) error {
	values := make(map[string]any, len(e.Raw.Values)+2)
	for k, v := range e.Raw.Values {
		values[k] = v
	}
	values["dead_letter_reason"] = reason
	values["original_id"] = e.ID

	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DeadLetter,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd dead letter (stream=%s): %w", c.cfg.DeadLetter, err)
	}

	if err := c.Ack(ctx, e.ID); err != nil {
		return fmt.Errorf("acking dead-lettered entry: %w", err)
	}

	slog.WarnContext(ctx, "entry moved to dead letter stream",
		"reason", reason,
		"dead_letter_stream", c.cfg.DeadLetter)
	return nil
}
