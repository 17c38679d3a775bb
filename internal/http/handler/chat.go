package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"infiya.app/relay/internal/http/dto"
	"infiya.app/relay/internal/http/middleware"
	"infiya.app/relay/internal/service"
)

type ChatHandler struct {
	chat          service.ChatService
	conversations service.ConversationService
	historyLimit  int
}

func NewChatHandler(chat service.ChatService, conversations service.ConversationService, historyLimit int) *ChatHandler {
	return &ChatHandler{
		chat:          chat,
		conversations: conversations,
		historyLimit:  historyLimit,
	}
}

func (h *ChatHandler) Send(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.chat.Send(ctx, middleware.UserID(c), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		case errors.Is(err, service.ErrMessageTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message too long"})
		default:
			slog.ErrorContext(ctx, "failed to send message", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.ToSendMessageResponse(res))
}

// History returns the latest messages; limit defaults to the configured size
// and limit=0 returns the whole conversation.
func (h *ChatHandler) History(c *gin.Context) {
	ctx := c.Request.Context()

	limit := &h.historyLimit
	if raw, ok := c.GetQuery("limit"); ok {
		// The store takes an int32 row limit.
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		n := int(v)
		limit = &n
		if n == 0 {
			limit = nil
		}
	}

	msgs, err := h.conversations.History(ctx, middleware.UserID(c), limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read chat history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve chat history"})
		return
	}

	c.JSON(http.StatusOK, dto.ToChatHistoryResponse(msgs))
}

func (h *ChatHandler) Clear(c *gin.Context) {
	ctx := c.Request.Context()

	n, err := h.conversations.Clear(ctx, middleware.UserID(c))
	if err != nil {
		slog.ErrorContext(ctx, "failed to clear chat history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear chat history"})
		return
	}

	c.JSON(http.StatusOK, dto.ClearChatResponse{
		Success:      true,
		Message:      "Chat history cleared successfully",
		DeletedCount: n,
	})
}

func (h *ChatHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.conversations.Stats(ctx, middleware.UserID(c))
	if err != nil {
		slog.ErrorContext(ctx, "failed to read chat stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get chat statistics"})
		return
	}

	c.JSON(http.StatusOK, dto.ChatStatsResponse{Success: true, Stats: stats})
}
