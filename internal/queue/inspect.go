package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StreamSnapshot is a read-only view of a durable log used for debugging.
type StreamSnapshot struct {
	Stream  string          `json:"stream"`
	Length  int64           `json:"length"`
	Groups  []GroupSnapshot `json:"groups"`
	Entries []SnapshotEntry `json:"entries"`
}

type GroupSnapshot struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

type SnapshotEntry struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Inspect returns up to count of the most recent entries of stream, newest
// first, without touching any consumer group state.
func Inspect(ctx context.Context, client *redis.Client, stream string, count int64) (*StreamSnapshot, error) {
	length, err := client.XLen(ctx, stream).Result()
	if err != nil {
		return nil, fmt.Errorf("xlen (stream=%s): %w", stream, err)
	}

	snap := &StreamSnapshot{Stream: stream, Length: length}
	if length == 0 {
		return snap, nil
	}

	groups, err := client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return nil, fmt.Errorf("xinfo groups (stream=%s): %w", stream, err)
	}
	for _, g := range groups {
		snap.Groups = append(snap.Groups, GroupSnapshot{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
		})
	}

	msgs, err := client.XRevRangeN(ctx, stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange (stream=%s): %w", stream, err)
	}
	for _, m := range msgs {
		ev, _ := ParseProgressEvent(m)
		snap.Entries = append(snap.Entries, SnapshotEntry{ID: m.ID, Fields: ev.Raw})
	}

	return snap, nil
}
