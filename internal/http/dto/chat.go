package dto

import (
	"time"

	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/service"
)

type SendMessageRequest struct {
	Message string `json:"message"`
}

type SendMessageResponse struct {
	Success    bool   `json:"success"`
	MessageID  int64  `json:"message_id,string"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
}

func ToSendMessageResponse(res *service.SendResult) *SendMessageResponse {
	return &SendMessageResponse{
		Success:    true,
		MessageID:  res.Message.ID,
		WorkflowID: res.WorkflowID,
		Status:     res.Status,
	}
}

type ChatHistoryResponse struct {
	Messages   []model.ChatMessage `json:"messages"`
	TotalCount int                 `json:"total_count"`
}

func ToChatHistoryResponse(msgs []model.ChatMessage) *ChatHistoryResponse {
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return &ChatHistoryResponse{Messages: msgs, TotalCount: len(msgs)}
}

type ClearChatResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deleted_count"`
}

type ChatStatsResponse struct {
	Success bool             `json:"success"`
	Stats   *model.ChatStats `json:"stats"`
}

type ChatHealthResponse struct {
	Status            string    `json:"status"`
	Service           string    `json:"service"`
	Timestamp         time.Time `json:"timestamp"`
	ActiveConnections int       `json:"active_connections"`
	RunningWorkflows  int       `json:"running_workflows"`
}
