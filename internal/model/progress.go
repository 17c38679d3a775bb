package model

// StageKind classifies a progress event by its originating stage.
type StageKind string

const (
	StageStarted     StageKind = "workflow_started"
	StageAgentUpdate StageKind = "agent_update"
	StageCompleted   StageKind = "workflow_completed"
	StageFailed      StageKind = "workflow_error"
	// StageUnknown covers records that name no stage at all.
	StageUnknown StageKind = "unknown"
)

// ProgressEvent is one entry the pipeline appended to a user's durable log.
// Optional numeric fields are nil when absent or not coercible.
type ProgressEvent struct {
	EntryID          string
	WorkflowID       string
	RequestID        string
	Type             string
	AgentName        string
	Status           string
	Message          string
	Progress         *float64
	ProcessingTimeMS *int64
	Data             *string
	Error            *string
	Timestamp        string
	Raw              map[string]string
}

// Kind resolves the stage of the event. Either the stage name or the explicit
// type field can mark a terminal event.
func (e ProgressEvent) Kind() StageKind {
	switch {
	case e.AgentName == string(StageCompleted) || e.Type == string(StageCompleted):
		return StageCompleted
	case e.AgentName == string(StageFailed) || e.Type == string(StageFailed):
		return StageFailed
	case e.AgentName == string(StageStarted):
		return StageStarted
	case e.AgentName != "":
		return StageAgentUpdate
	default:
		return StageUnknown
	}
}

func (e ProgressEvent) IsTerminal() bool {
	k := e.Kind()
	return k == StageCompleted || k == StageFailed
}
