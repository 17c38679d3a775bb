package queue

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"infiya.app/relay/internal/model"
)

var ErrMissingWorkflowID = errors.New("missing workflow_id")

// ParseProgressEvent reads the fields the pipeline writes for each update.
// Only a missing workflow_id makes an entry malformed; numeric fields that do
// not parse are left nil. The event is populated even when an error is returned.
func ParseProgressEvent(msg redis.XMessage) (model.ProgressEvent, error) {
	raw := make(map[string]string, len(msg.Values))
	for k, v := range msg.Values {
		raw[k] = fmt.Sprint(v)
	}

	ev := model.ProgressEvent{
		EntryID:    msg.ID,
		WorkflowID: raw["workflow_id"],
		RequestID:  raw["request_id"],
		Type:       raw["type"],
		AgentName:  raw["agent_name"],
		Status:     raw["status"],
		Message:    raw["message"],
		Timestamp:  raw["timestamp"],
		Raw:        raw,
	}

	if s, ok := raw["progress"]; ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			ev.Progress = &f
		}
	} else {
		zero := 0.0
		ev.Progress = &zero
	}
	if s, ok := raw["processing_time"]; ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			ms := int64(f)
			ev.ProcessingTimeMS = &ms
		}
	}
	if s, ok := raw["data"]; ok && s != "" {
		ev.Data = &s
	}
	if s, ok := raw["error"]; ok && s != "" {
		ev.Error = &s
	}

	if ev.WorkflowID == "" {
		return ev, ErrMissingWorkflowID
	}
	return ev, nil
}

func eventValues(ev model.ProgressEvent) map[string]any {
	values := map[string]any{
		"type":        ev.Type,
		"workflow_id": ev.WorkflowID,
		"agent_name":  ev.AgentName,
		"status":      ev.Status,
		"message":     ev.Message,
		"timestamp":   ev.Timestamp,
		"retryable":   "false",
	}
	if ev.Type == "" {
		values["type"] = "agent_update"
	}
	if ev.RequestID != "" {
		values["request_id"] = ev.RequestID
	}
	if ev.Progress != nil {
		values["progress"] = strconv.FormatFloat(*ev.Progress, 'f', -1, 64)
	}
	if ev.ProcessingTimeMS != nil {
		values["processing_time"] = strconv.FormatInt(*ev.ProcessingTimeMS, 10)
	}
	if ev.Data != nil {
		values["data"] = *ev.Data
	}
	if ev.Error != nil {
		values["error"] = *ev.Error
	}
	return values
}
