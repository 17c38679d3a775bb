package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"infiya.app/relay/common/id"
	"infiya.app/relay/common/logger"
	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/store"
)

// ConversationService is the durable chat record of each user.
type ConversationService interface {
	AppendUserMessage(ctx context.Context, userID, workflowID, text string) (*model.ChatMessage, error)
	// AppendAssistantMessage never drops the answer silently; storage failures are returned.
	AppendAssistantMessage(ctx context.Context, userID, workflowID, text string, stats *model.WorkflowStats) (*model.ChatMessage, error)
	History(ctx context.Context, userID string, limit *int) ([]model.ChatMessage, error)
	Clear(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context, userID string) (*model.ChatStats, error)
}

type conversationService struct {
	chat store.ChatStore
}

func NewConversationService(chat store.ChatStore) ConversationService {
	return &conversationService{chat: chat}
}

func (s *conversationService) AppendUserMessage(ctx context.Context, userID, workflowID, text string) (*model.ChatMessage, error) {
	return appendUserMessage(ctx, s.chat, userID, workflowID, text)
}

func appendUserMessage(ctx context.Context, chat store.ChatStore, userID, workflowID, text string) (*model.ChatMessage, error) {
	msg := &model.ChatMessage{
		ID:         id.New(),
		UserID:     userID,
		Role:       model.RoleUser,
		Content:    text,
		Timestamp:  time.Now().UTC(),
		RawQuery:   &text,
		WorkflowID: &workflowID,
	}
	if err := chat.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending user message: %w", err)
	}
	return msg, nil
}

func (s *conversationService) AppendAssistantMessage(ctx context.Context, userID, workflowID, text string, stats *model.WorkflowStats) (*model.ChatMessage, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:     logger.Ptr(userID),
		WorkflowID: logger.Ptr(workflowID),
		Component:  "relay.service.conversation",
	})

	msg := &model.ChatMessage{
		ID:            id.New(),
		UserID:        userID,
		Role:          model.RoleAssistant,
		Content:       text,
		Timestamp:     time.Now().UTC(),
		WorkflowID:    &workflowID,
		WorkflowStats: stats,
	}
	if err := s.chat.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("appending assistant message: %w", err)
	}

	slog.DebugContext(ctx, "assistant message stored",
		"message_id", msg.ID,
		"content_length", len(text))
	return msg, nil
}

func (s *conversationService) History(ctx context.Context, userID string, limit *int) ([]model.ChatMessage, error) {
	msgs, err := s.chat.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return msgs, nil
}

func (s *conversationService) Clear(ctx context.Context, userID string) (int64, error) {
	n, err := s.chat.Clear(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	slog.InfoContext(ctx, "chat history cleared", "deleted", n)
	return n, nil
}

func (s *conversationService) Stats(ctx context.Context, userID string) (*model.ChatStats, error) {
	stats, err := s.chat.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading chat stats: %w", err)
	}
	return stats, nil
}
