package relay

import (
	"time"

	"infiya.app/relay/internal/model"
)

// FrameType is the "type" discriminator of a live push frame.
type FrameType string

const (
	FrameConnectionEstablished FrameType = "connection_established"
	FrameMessageReceived       FrameType = "message_received"
	FrameAgentUpdate           FrameType = "agent_update"
	FrameWorkflowCompleted     FrameType = "workflow_completed"
	FrameWorkflowError         FrameType = "workflow_error"
	FrameHeartbeat             FrameType = "heartbeat"
	FramePollingError          FrameType = "polling_error"
	FrameConnectionError       FrameType = "connection_error"
)

// Frame is the client-facing JSON event pushed over the live stream.
type Frame struct {
	Type             FrameType            `json:"type"`
	WorkflowID       string               `json:"workflow_id,omitempty"`
	AgentName        string               `json:"agent_name,omitempty"`
	Status           string               `json:"status,omitempty"`
	Message          string               `json:"message,omitempty"`
	Progress         *float64             `json:"progress,omitempty"`
	ProcessingTimeMS *int64               `json:"processing_time_ms,omitempty"`
	Data             any                  `json:"data,omitempty"`
	Error            string               `json:"error,omitempty"`
	FinalResponse    string               `json:"final_response,omitempty"`
	WorkflowStats    *model.WorkflowStats `json:"workflow_stats,omitempty"`
	UserID           string               `json:"user_id,omitempty"`
	UserMessage      *model.ChatMessage   `json:"user_message,omitempty"`
	Timestamp        string               `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func ConnectionEstablished(userID string) Frame {
	return Frame{
		Type:      FrameConnectionEstablished,
		Message:   "Real-time updates connected",
		UserID:    userID,
		Timestamp: now(),
	}
}

func Heartbeat() Frame {
	return Frame{Type: FrameHeartbeat, Timestamp: now()}
}

func MessageReceived(workflowID string, msg *model.ChatMessage) Frame {
	return Frame{
		Type:        FrameMessageReceived,
		WorkflowID:  workflowID,
		Status:      "processing",
		UserMessage: msg,
		Timestamp:   now(),
	}
}

// SubmissionFailed reports that the pipeline rejected or never received a workflow.
func SubmissionFailed(workflowID string, err error) Frame {
	return Frame{
		Type:       FrameWorkflowError,
		WorkflowID: workflowID,
		Error:      "Failed to start AI processing: " + err.Error(),
		Timestamp:  now(),
	}
}

func PollingError(workflowID, reason string) Frame {
	return Frame{
		Type:       FramePollingError,
		WorkflowID: workflowID,
		Error:      reason,
		Timestamp:  now(),
	}
}

func ConnectionError(reason string) Frame {
	return Frame{
		Type:      FrameConnectionError,
		Error:     reason,
		Timestamp: now(),
	}
}
