package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a time-ordered int64 ID for persisted records.
func New() int64 {
	return node.Generate().Int64()
}

// NewWorkflowID returns the identifier that correlates a submitted query with
// its pipeline job, its durable log entries and the stored answer.
func NewWorkflowID() string {
	return "workflow_" + uuid.NewString()
}
