package router

import (
	"github.com/gin-gonic/gin"

	"infiya.app/relay/internal/http/handler"
)

func ChatRouter(router *gin.RouterGroup, chat *handler.ChatHandler, stream *handler.StreamHandler, debug *handler.DebugHandler) {
	router.POST("/send", chat.Send)
	router.GET("/history", chat.History)
	router.DELETE("/clear", chat.Clear)
	router.GET("/stats", chat.Stats)

	router.GET("/stream", stream.SSE)
	router.GET("/ws", stream.WebSocket)

	if debug != nil {
		router.GET("/debug/stream", debug.Stream)
	}
}
