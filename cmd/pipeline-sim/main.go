// Command pipeline-sim stands in for the AI pipeline during local development.
// It accepts workflow submissions and replays a scripted run into the user's
// durable log and workflow state store, the way the real pipeline does.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"infiya.app/relay/common/logger"
	"infiya.app/relay/core/config"
	"infiya.app/relay/internal/http/middleware"
	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/pipeline"
	"infiya.app/relay/internal/queue"
)

var agents = []string{"classifier", "keyword_extractor", "news_api", "relevancy", "summarizer"}

type simulator struct {
	producer queue.Producer
	memory   *redis.Client
	cfg      config.Config
	wg       sync.WaitGroup
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg)

	streams, err := redisClient(ctx, cfg.Streams.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to streams redis", "error", err)
		os.Exit(1)
	}
	memory, err := redisClient(ctx, cfg.Memory.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to memory redis", "error", err)
		os.Exit(1)
	}
	defer memory.Close()

	sim := &simulator{
		producer: queue.NewRedisProducer(streams, slog.Default()),
		memory:   memory,
		cfg:      cfg,
	}
	defer sim.producer.Close()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.Logger())
	router.POST("/api/v1/workflows/execute", func(c *gin.Context) {
		var req pipeline.SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.WorkflowID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, workflow_id and query are required"})
			return
		}
		sim.wg.Add(1)
		go func() {
			defer sim.wg.Done()
			sim.run(sigCtx, req)
		}()
		c.JSON(http.StatusAccepted, gin.H{"workflow_id": req.WorkflowID, "status": "accepted"})
	})

	server := &http.Server{
		Addr:              ":" + cfg.Simulator.Port,
		Handler:           router,
		BaseContext:       func(net.Listener) context.Context { return sigCtx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "pipeline simulator listening", "port", cfg.Simulator.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "simulator server error", "error", err)
			stop()
		}
	}()

	<-sigCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	sim.wg.Wait()
}

// run replays one workflow. Queries containing "fail" end in workflow_error.
func (s *simulator) run(ctx context.Context, req pipeline.SubmitRequest) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:     logger.Ptr(req.UserID),
		WorkflowID: logger.Ptr(req.WorkflowID),
		Component:  "relay.pipelinesim",
	})
	stream := s.cfg.Streams.StreamKey(req.UserID)
	started := time.Now()

	emit := func(ev model.ProgressEvent) bool {
		ev.WorkflowID = req.WorkflowID
		ev.RequestID = req.WorkflowID
		if _, err := s.producer.Append(ctx, stream, ev); err != nil {
			slog.ErrorContext(ctx, "append failed", "error", err)
			return false
		}
		return true
	}

	if !emit(model.ProgressEvent{AgentName: string(model.StageStarted), Status: "processing", Message: "Workflow started"}) {
		return
	}

	for i, agent := range agents {
		if !s.pause(ctx) {
			return
		}
		data, _ := json.Marshal(map[string]any{
			"workflow_type":  "new_news_query",
			"agent_sequence": agents,
			"total_agents":   len(agents),
		})
		done := float64(i+1) / float64(len(agents))
		elapsed := time.Since(started).Milliseconds()
		if !emit(model.ProgressEvent{
			AgentName:        agent,
			Status:           "completed",
			Message:          fmt.Sprintf("%s finished", agent),
			Progress:         &done,
			ProcessingTimeMS: &elapsed,
			Data:             logger.Ptr(string(data)),
		}) {
			return
		}
	}

	if strings.Contains(strings.ToLower(req.Query), "fail") {
		emit(model.ProgressEvent{
			AgentName: string(model.StageFailed),
			Status:    "failed",
			Error:     logger.Ptr("simulated pipeline failure"),
		})
		return
	}

	if err := s.writeState(ctx, req.WorkflowID, time.Since(started)); err != nil {
		slog.WarnContext(ctx, "failed to write workflow state", "error", err)
	}

	emit(model.ProgressEvent{
		AgentName: string(model.StageCompleted),
		Status:    "completed",
		Message:   fmt.Sprintf("Here is what I found about %q.", req.Query),
	})
}

func (s *simulator) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.cfg.Simulator.StepDelay):
		return true
	}
}

func (s *simulator) writeState(ctx context.Context, workflowID string, took time.Duration) error {
	state, err := json.Marshal(map[string]any{
		"intent": "new_news_query",
		"processing_stats": map[string]any{
			"total_duration":    took.Nanoseconds(),
			"api_calls_count":   len(agents),
			"articles_filtered": 2,
			"videos_filtered":   0,
		},
		"articles": []map[string]string{
			{"title": "Simulated headline one", "url": "https://example.com/1"},
			{"title": "Simulated headline two", "url": "https://example.com/2"},
		},
		"videos": nil,
	})
	if err != nil {
		return err
	}
	key := fmt.Sprintf(s.cfg.Memory.KeyPattern, workflowID)
	return s.memory.Set(ctx, key, state, time.Hour).Err()
}

func redisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
