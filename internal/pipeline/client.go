package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"infiya.app/relay/common/logger"
	"infiya.app/relay/internal/model"
)

const (
	executePath  = "/api/v1/workflows/execute"
	maxErrorBody = 512
)

// Submitter hands a query to the AI pipeline for asynchronous processing.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) error
}

type SubmitRequest struct {
	UserID      string            `json:"user_id"`
	Query       string            `json:"query"`
	WorkflowID  string            `json:"workflow_id"`
	Preferences model.Preferences `json:"user_preferences"`
}

// SubmitError is returned when the pipeline answers with a non-2xx status.
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("AI Pipeline returned %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Submit posts the workflow. The pipeline acknowledges immediately; progress
// arrives later on the user's durable log.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:     logger.Ptr(req.UserID),
		WorkflowID: logger.Ptr(req.WorkflowID),
		Component:  "relay.pipeline.client",
	})

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+executePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling AI pipeline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &SubmitError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.InfoContext(ctx, "workflow submitted to AI pipeline",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
