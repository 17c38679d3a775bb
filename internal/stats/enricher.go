package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"infiya.app/relay/common/logger"
	"infiya.app/relay/internal/model"
)

// Enricher resolves completion statistics from the workflow state snapshot the
// pipeline keeps in the fast-access store.
type Enricher struct {
	client     *redis.Client
	keyPattern string
}

func NewEnricher(client *redis.Client, keyPattern string) *Enricher {
	return &Enricher{client: client, keyPattern: keyPattern}
}

// Resolve returns nil stats and nil error when the workflow has no snapshot.
func (e *Enricher) Resolve(ctx context.Context, workflowID string) (*model.WorkflowStats, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		WorkflowID: logger.Ptr(workflowID),
		Component:  "relay.stats.enricher",
	})

	key := fmt.Sprintf(e.keyPattern, workflowID)
	raw, err := e.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			slog.DebugContext(ctx, "no workflow state snapshot", "key", key)
			return nil, nil
		}
		return nil, fmt.Errorf("reading workflow state %s: %w", key, err)
	}

	stats, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding workflow state %s: %w", key, err)
	}
	return stats, nil
}

type workflowState struct {
	Intent          *string         `json:"intent"`
	ProcessingStats processingStats `json:"processing_stats"`
	Articles        json.RawMessage `json:"articles"`
	Videos          json.RawMessage `json:"videos"`
}

// Counters arrive as JSON numbers that may be floats.
type processingStats struct {
	TotalDuration    float64 `json:"total_duration"` // nanoseconds
	APICallsCount    float64 `json:"api_calls_count"`
	ArticlesFiltered float64 `json:"articles_filtered"`
	VideosFiltered   float64 `json:"videos_filtered"`
}

// Decode extracts WorkflowStats from a workflow state snapshot.
func Decode(raw []byte) (*model.WorkflowStats, error) {
	var st workflowState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}

	return &model.WorkflowStats{
		Intent:          st.Intent,
		TotalDurationMS: int64(st.ProcessingStats.TotalDuration) / 1_000_000,
		APICallsCount:   int64(st.ProcessingStats.APICallsCount),
		ArticlesFound:   int64(st.ProcessingStats.ArticlesFiltered),
		VideosFound:     int64(st.ProcessingStats.VideosFiltered),
		Articles:        nonNull(st.Articles),
		Videos:          nonNull(st.Videos),
	}, nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
