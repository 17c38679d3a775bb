package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"infiya.app/relay/common/id"
	"infiya.app/relay/common/logger"
	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/pipeline"
	"infiya.app/relay/internal/relay"
	"infiya.app/relay/internal/store"
)

var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message too long")
)

const StatusProcessing = "processing"

// Publisher delivers frames to a user's live channel.
type Publisher interface {
	Publish(ctx context.Context, userID string, f relay.Frame) bool
}

// WorkflowStarter runs the consumer that follows a workflow's updates.
type WorkflowStarter interface {
	Start(ctx context.Context, userID, workflowID string) error
	Abandon(workflowID string)
}

type SendResult struct {
	Message    *model.ChatMessage
	WorkflowID string
	Status     string
}

// ChatService accepts user queries and hands them to the AI pipeline.
type ChatService interface {
	Send(ctx context.Context, userID, text string) (*SendResult, error)
	// Drain waits for in-flight pipeline submissions.
	Drain(ctx context.Context) error
}

type chatService struct {
	txRunner  TxRunner
	publisher Publisher
	workflows WorkflowStarter
	submitter pipeline.Submitter
	maxLength int

	inflight sync.WaitGroup
}

func NewChatService(txRunner TxRunner, publisher Publisher, workflows WorkflowStarter, submitter pipeline.Submitter, maxLength int) ChatService {
	return &chatService{
		txRunner:  txRunner,
		publisher: publisher,
		workflows: workflows,
		submitter: submitter,
		maxLength: maxLength,
	}
}

func (s *chatService) Send(ctx context.Context, userID, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.maxLength > 0 && utf8.RuneCountInString(text) > s.maxLength {
		return nil, fmt.Errorf("%w: at most %d characters", ErrMessageTooLong, s.maxLength)
	}

	workflowID := id.NewWorkflowID()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:     logger.Ptr(userID),
		WorkflowID: logger.Ptr(workflowID),
		Component:  "relay.service.chat",
	})

	var (
		msg   *model.ChatMessage
		prefs model.Preferences
	)
	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		p, err := sp.Preferences().Get(ctx, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			prefs = model.DefaultPreferences()
		case err != nil:
			return fmt.Errorf("reading preferences: %w", err)
		default:
			prefs = *p
		}

		msg, err = appendUserMessage(ctx, sp.Chat(), userID, workflowID, text)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, userID, relay.MessageReceived(workflowID, msg))

	// The consumer is running before the pipeline can append anything.
	if err := s.workflows.Start(ctx, userID, workflowID); err != nil {
		return nil, fmt.Errorf("starting workflow consumer: %w", err)
	}

	req := pipeline.SubmitRequest{
		UserID:      userID,
		Query:       text,
		WorkflowID:  workflowID,
		Preferences: prefs,
	}
	s.inflight.Add(1)
	go s.submit(context.WithoutCancel(ctx), req)

	slog.InfoContext(ctx, "chat message accepted",
		"message_id", msg.ID,
		"query", logger.Truncate(text, 100))

	return &SendResult{Message: msg, WorkflowID: workflowID, Status: StatusProcessing}, nil
}

func (s *chatService) submit(ctx context.Context, req pipeline.SubmitRequest) {
	defer s.inflight.Done()

	err := s.submitter.Submit(ctx, req)
	if err == nil {
		return
	}

	var submitErr *pipeline.SubmitError
	if errors.As(err, &submitErr) {
		slog.ErrorContext(ctx, "AI pipeline rejected workflow",
			"status", submitErr.StatusCode,
			"body", submitErr.Body)
	} else {
		slog.ErrorContext(ctx, "AI pipeline unreachable", "error", err)
	}

	s.workflows.Abandon(req.WorkflowID)
	s.publisher.Publish(ctx, req.UserID, relay.SubmissionFailed(req.WorkflowID, err))
}

func (s *chatService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
