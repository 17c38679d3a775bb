package worker

import (
	"context"
	"time"

	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/queue"
	"infiya.app/relay/internal/relay"
)

// EventLog abstracts one user's durable log for testability.
type EventLog interface {
	EnsureGroup(ctx context.Context) error
	Reclaim(ctx context.Context, cursor string, minIdle time.Duration) ([]queue.Entry, string, error)
	Read(ctx context.Context) ([]queue.Entry, error)
	Ack(ctx context.Context, id string) error
	DeadLetter(ctx context.Context, e queue.Entry, reason string) error
}

// LogFactory opens the durable log of a user under that user's consumer name.
type LogFactory func(userID string) EventLog

// Publisher delivers frames to a user's live channel.
type Publisher interface {
	Publish(ctx context.Context, userID string, f relay.Frame) bool
}

// StatsResolver looks up completion statistics for a workflow.
type StatsResolver interface {
	Resolve(ctx context.Context, workflowID string) (*model.WorkflowStats, error)
}

// Mirrors service.ConversationService - defined here to avoid import cycles.
type Finalizer interface {
	AppendAssistantMessage(ctx context.Context, userID, workflowID, text string, stats *model.WorkflowStats) (*model.ChatMessage, error)
}
