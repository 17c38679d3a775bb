package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"infiya.app/relay/core/config"
	"infiya.app/relay/internal/http/middleware"
	"infiya.app/relay/internal/queue"
)

// DebugHandler exposes the raw durable log of the calling user. Only mounted
// outside production.
type DebugHandler struct {
	redis   *redis.Client
	streams config.StreamsConfig
}

func NewDebugHandler(redisClient *redis.Client, streams config.StreamsConfig) *DebugHandler {
	return &DebugHandler{redis: redisClient, streams: streams}
}

func (h *DebugHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	count := int64(20)
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
			return
		}
		count = n
	}

	snap, err := queue.Inspect(ctx, h.redis, h.streams.StreamKey(middleware.UserID(c)), count)
	if err != nil {
		slog.ErrorContext(ctx, "failed to inspect stream", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to inspect stream"})
		return
	}

	c.JSON(http.StatusOK, snap)
}
