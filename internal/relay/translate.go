package relay

import (
	"encoding/json"
	"errors"
	"strings"

	"infiya.app/relay/internal/model"
)

// PlaceholderCompletion is the message the pipeline sends on completion when it
// produced no answer text.
const PlaceholderCompletion = "Workflow Completed successfully"

const defaultFailureMessage = "An error occurred during analysis"

var (
	// ErrNotClientRelevant marks events that are valid but never shown to clients.
	ErrNotClientRelevant = errors.New("event not client relevant")
	// ErrIncompleteEvent marks events missing the stage name or status.
	ErrIncompleteEvent = errors.New("event missing agent_name or status")
)

// Translate converts a progress event into the frame pushed to the client.
// It has no side effects; callers decide how to log the returned errors.
func Translate(ev model.ProgressEvent) (Frame, error) {
	if ev.AgentName == "" || ev.Status == "" {
		return Frame{}, ErrIncompleteEvent
	}

	kind := ev.Kind()
	if kind == model.StageStarted {
		return Frame{}, ErrNotClientRelevant
	}

	frame := Frame{
		Type:             FrameAgentUpdate,
		WorkflowID:       ev.WorkflowID,
		AgentName:        ev.AgentName,
		Status:           ev.Status,
		Message:          ev.Message,
		Progress:         ev.Progress,
		ProcessingTimeMS: ev.ProcessingTimeMS,
		Timestamp:        ev.Timestamp,
	}
	if frame.Timestamp == "" {
		frame.Timestamp = now()
	}
	if ev.Data != nil {
		frame.Data = decodeData(*ev.Data)
	}
	if ev.Error != nil {
		frame.Error = *ev.Error
	}

	switch kind {
	case model.StageCompleted:
		frame.Type = FrameWorkflowCompleted
		frame.FinalResponse = FinalResponse(ev)
	case model.StageFailed:
		frame.Type = FrameWorkflowError
		frame.Error = failureReason(ev)
	}

	return frame, nil
}

// FinalResponse returns the answer text carried by a completion event, or "" when
// the message is empty or only the placeholder.
func FinalResponse(ev model.ProgressEvent) string {
	msg := ev.Message
	if strings.TrimSpace(msg) == "" || IsPlaceholder(msg) {
		return ""
	}
	return msg
}

func IsPlaceholder(msg string) bool {
	return strings.EqualFold(strings.TrimSpace(msg), PlaceholderCompletion)
}

func failureReason(ev model.ProgressEvent) string {
	if ev.Message != "" {
		return ev.Message
	}
	if ev.Error != nil && *ev.Error != "" {
		return *ev.Error
	}
	return defaultFailureMessage
}

// decodeData passes structured payloads through as JSON and anything else as text.
func decodeData(raw string) any {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	return raw
}
