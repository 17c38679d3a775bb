package store

import (
	"context"
	"errors"

	"infiya.app/relay/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ChatStore is the append-only conversation record per user.
type ChatStore interface {
	Append(ctx context.Context, msg *model.ChatMessage) error
	// History returns the most recent limit messages in chronological order; nil limit returns all.
	History(ctx context.Context, userID string, limit *int) ([]model.ChatMessage, error)
	// Clear deletes the user's conversation and reports how many messages were removed.
	Clear(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context, userID string) (*model.ChatStats, error)
}

// PreferencesStore reads user preferences maintained elsewhere.
type PreferencesStore interface {
	Get(ctx context.Context, userID string) (*model.Preferences, error)
}
