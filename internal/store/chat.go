package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"infiya.app/relay/core/db/sqlc"
	"infiya.app/relay/internal/model"
)

type chatStore struct {
	queries *sqlc.Queries
}

func newChatStore(queries *sqlc.Queries) ChatStore {
	return &chatStore{queries: queries}
}

func (s *chatStore) Append(ctx context.Context, msg *model.ChatMessage) error {
	var stats []byte
	if msg.WorkflowStats != nil {
		b, err := json.Marshal(msg.WorkflowStats)
		if err != nil {
			return fmt.Errorf("encoding workflow stats: %w", err)
		}
		stats = b
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	row, err := s.queries.InsertChatMessage(ctx, sqlc.InsertChatMessageParams{
		ID:            msg.ID,
		UserID:        msg.UserID,
		Role:          string(msg.Role),
		Content:       msg.Content,
		WorkflowID:    msg.WorkflowID,
		WorkflowStats: stats,
		RawQuery:      msg.RawQuery,
		CreatedAt:     pgtype.Timestamptz{Time: msg.Timestamp, Valid: true},
	})
	if err != nil {
		return err
	}

	out, err := toChatMessageModel(row)
	if err != nil {
		return err
	}
	*msg = *out
	return nil
}

func (s *chatStore) History(ctx context.Context, userID string, limit *int) ([]model.ChatMessage, error) {
	var (
		rows []sqlc.ChatMessage
		err  error
	)
	if limit == nil {
		rows, err = s.queries.ListAllChatMessages(ctx, userID)
	} else {
		if *limit <= 0 {
			return []model.ChatMessage{}, nil
		}
		rows, err = s.queries.ListRecentChatMessages(ctx, sqlc.ListRecentChatMessagesParams{
			UserID: userID,
			Limit:  int32(*limit),
		})
	}
	if err != nil {
		return nil, err
	}

	msgs := make([]model.ChatMessage, 0, len(rows))
	for _, row := range rows {
		m, err := toChatMessageModel(row)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

func (s *chatStore) Clear(ctx context.Context, userID string) (int64, error) {
	return s.queries.DeleteChatMessages(ctx, userID)
}

func (s *chatStore) Stats(ctx context.Context, userID string) (*model.ChatStats, error) {
	row, err := s.queries.GetChatStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.ChatStats{
		TotalMessages:          row.TotalMessages,
		TotalUserMessages:      row.UserMessages,
		TotalAssistantMessages: row.AssistantMessages,
		StartedAt:              timePtr(row.FirstActivity),
		LastActivity:           timePtr(row.LastActivity),
	}, nil
}

func toChatMessageModel(row sqlc.ChatMessage) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:         row.ID,
		UserID:     row.UserID,
		Role:       model.Role(row.Role),
		Content:    row.Content,
		Timestamp:  row.CreatedAt.Time,
		RawQuery:   row.RawQuery,
		WorkflowID: row.WorkflowID,
	}
	if len(row.WorkflowStats) > 0 {
		var stats model.WorkflowStats
		if err := json.Unmarshal(row.WorkflowStats, &stats); err != nil {
			return nil, fmt.Errorf("decoding workflow stats of message %d: %w", row.ID, err)
		}
		msg.WorkflowStats = &stats
	}
	return msg, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
