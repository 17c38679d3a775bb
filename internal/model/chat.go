package model

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// ChatMessage is one append-only entry of a user's conversation.
type ChatMessage struct {
	ID            int64          `json:"id,string"`
	UserID        string         `json:"-"`
	Role          Role           `json:"type"`
	Content       string         `json:"content"`
	Timestamp     time.Time      `json:"timestamp"`
	RawQuery      *string        `json:"raw_query,omitempty"`
	WorkflowID    *string        `json:"workflow_id,omitempty"`
	WorkflowStats *WorkflowStats `json:"workflow_stats,omitempty"`
}

// WorkflowStats is the snapshot resolved from the pipeline's workflow state once a
// workflow completes.
type WorkflowStats struct {
	Intent          *string         `json:"intent"`
	TotalDurationMS int64           `json:"total_duration_ms"`
	APICallsCount   int64           `json:"api_calls_count"`
	ArticlesFound   int64           `json:"articles_found"`
	VideosFound     int64           `json:"videos_found"`
	Articles        json.RawMessage `json:"articles,omitempty"`
	Videos          json.RawMessage `json:"videos,omitempty"`
}

// ChatStats summarizes a user's conversation.
type ChatStats struct {
	TotalMessages          int64      `json:"total_messages"`
	TotalUserMessages      int64      `json:"total_user_messages"`
	TotalAssistantMessages int64      `json:"total_assistant_messages"`
	StartedAt              *time.Time `json:"chat_started_at"`
	LastActivity           *time.Time `json:"last_activity"`
}
