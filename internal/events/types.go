package events

import "time"

// Type identifies a queue or supervisor event.
type Type string

const (
	// Task lifecycle events emitted by the queue engine
	TypeTaskQueued           Type = "task-queued"
	TypeTaskStarted          Type = "task-started"
	TypeTaskProgress         Type = "task-progress"
	TypeTaskCompleted        Type = "task-completed"
	TypeTaskFailed           Type = "task-failed"
	TypeTaskCancelled        Type = "task-cancelled"
	TypeTaskApprovalRequired Type = "task-approval-required"

	// Queue driver lifecycle
	TypeQueueStarted   Type = "queue-started"
	TypeQueuePaused    Type = "queue-paused"
	TypeQueueResumed   Type = "queue-resumed"
	TypeQueueCompleted Type = "queue-completed"

	// Supervisor events
	TypeAutonomousStarted     Type = "autonomous-started"
	TypeAutonomousProgress    Type = "autonomous-progress"
	TypeAutonomousPaused      Type = "autonomous-paused"
	TypeAutonomousResumed     Type = "autonomous-resumed"
	TypeAutonomousStopped     Type = "autonomous-stopped"
	TypeAutonomousError       Type = "autonomous-error"
	TypeAutonomousIdleTimeout Type = "autonomous-idle-timeout"
	TypeTaskStuck             Type = "task-stuck"
	TypeTaskRetried           Type = "task-retried"
	TypeAutoApproved          Type = "auto-approved"
	TypeManualApprovalNeeded  Type = "manual-approval-required"
)

// Event is one observation delivered to subscribers. TaskID is empty for
// queue- and supervisor-level events.
type Event struct {
	Type      Type                   `json:"type"`
	TaskID    string                 `json:"task_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
