package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"infiya.app/relay/internal/model"
)

// Producer appends progress events the way the pipeline does. The relay itself
// never writes to a user's log; this backs the simulator and integration tests.
type Producer interface {
	Append(ctx context.Context, stream string, ev model.ProgressEvent) (string, error)
	Close() error
}

type redisProducer struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		logger: logger,
	}
}

func (p *redisProducer) Append(ctx context.Context, stream string, ev model.ProgressEvent) (string, error) {
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: eventValues(ev),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("append progress event: %w", err)
	}

	p.logger.DebugContext(ctx, "appended progress event",
		"stream", stream,
		"entry_id", id,
		"workflow_id", ev.WorkflowID,
		"agent_name", ev.AgentName,
		"status", ev.Status)
	return id, nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
