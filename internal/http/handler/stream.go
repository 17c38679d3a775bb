package handler

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"infiya.app/relay/internal/http/dto"
	"infiya.app/relay/internal/http/middleware"
	"infiya.app/relay/internal/relay"
)

const wsWriteWait = 10 * time.Second

// WorkflowCounter reports how many workflow consumers are running.
type WorkflowCounter interface {
	Running() int
}

type StreamHandler struct {
	registry  *relay.Registry
	workflows WorkflowCounter
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

func NewStreamHandler(registry *relay.Registry, workflows WorkflowCounter, heartbeat time.Duration, allowOrigins []string, isProduction bool) *StreamHandler {
	return &StreamHandler{
		registry:  registry,
		workflows: workflows,
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || !isProduction || slices.Contains(allowOrigins, origin)
			},
		},
	}
}

// SSE streams the user's live frames as a text event stream.
func (h *StreamHandler) SSE(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	err := h.registry.Serve(ctx, userID, h.heartbeat, func(f relay.Frame) error {
		if err := sseWrite(c.Writer, "", f); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && ctx.Err() == nil {
		slog.WarnContext(ctx, "live stream interrupted", "error", err)
		if sseWrite(c.Writer, "", relay.ConnectionError("Stream interrupted")) == nil {
			flusher.Flush()
		}
	}
}

// WebSocket streams the same frames as JSON text messages.
func (h *StreamHandler) WebSocket(c *gin.Context) {
	userID := middleware.UserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already replied with an error status.
		slog.WarnContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Clients never send anything we act on; reading only detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = h.registry.Serve(ctx, userID, h.heartbeat, func(f relay.Frame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(f)
	})
	if err != nil && ctx.Err() == nil {
		slog.WarnContext(ctx, "websocket stream interrupted", "error", err)
		return
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (h *StreamHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.ChatHealthResponse{
		Status:            "healthy",
		Service:           "chat",
		Timestamp:         time.Now().UTC(),
		ActiveConnections: h.registry.Count(),
		RunningWorkflows:  h.workflows.Running(),
	})
}
