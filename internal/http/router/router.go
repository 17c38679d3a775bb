package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"infiya.app/relay/core/config"
	"infiya.app/relay/internal/http/handler"
	"infiya.app/relay/internal/http/middleware"
	"infiya.app/relay/internal/relay"
	"infiya.app/relay/internal/service"
)

type RouterConfig struct {
	IsProduction bool
	AllowOrigins []string
	Heartbeat    time.Duration
	HistoryLimit int
	Streams      config.StreamsConfig
}

// Dependencies are the long-lived components the handlers serve from.
type Dependencies struct {
	Chat          service.ChatService
	Conversations service.ConversationService
	Registry      *relay.Registry
	Workflows     handler.WorkflowCounter
	StreamsRedis  *redis.Client
}

func SetupRoutes(router *gin.Engine, deps Dependencies, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		chatHandler := handler.NewChatHandler(deps.Chat, deps.Conversations, cfg.HistoryLimit)
		streamHandler := handler.NewStreamHandler(deps.Registry, deps.Workflows, cfg.Heartbeat, cfg.AllowOrigins, cfg.IsProduction)

		var debugHandler *handler.DebugHandler
		if !cfg.IsProduction && deps.StreamsRedis != nil {
			debugHandler = handler.NewDebugHandler(deps.StreamsRedis, cfg.Streams)
		}

		chat := v1.Group("/chat")
		chat.GET("/health", streamHandler.Health)
		ChatRouter(chat.Group("", middleware.Identity()), chatHandler, streamHandler, debugHandler)
	}
}
