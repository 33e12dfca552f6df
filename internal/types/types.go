package types

import (
	"fmt"
	"time"
)

// Task represents one unit of LLM-backed work in the queue.
type Task struct {
	ID                 string        `json:"id"`
	ProjectID          string        `json:"project_id"`
	RoadmapID          string        `json:"roadmap_id,omitempty"`
	ParentID           string        `json:"parent_id,omitempty"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	TaskType           TaskType      `json:"task_type"`
	AgentPersona       AgentPersona  `json:"agent_persona"`
	AutonomyLevel      AutonomyLevel `json:"autonomy_level"`
	ApprovalRequired   bool          `json:"approval_required"`
	Status             TaskStatus    `json:"status"`
	Priority           int           `json:"priority"`
	RetryCount         int           `json:"retry_count"`
	MaxRetries         int           `json:"max_retries"`
	EstimatedDurationS int           `json:"estimated_duration_s,omitempty"`
	ActualDurationS    int           `json:"actual_duration_s,omitempty"`
	InputData          *TaskIO       `json:"input_data,omitempty"`
	OutputData         *TaskIO       `json:"output_data,omitempty"`
	ErrorMessage       string        `json:"error_message,omitempty"`
	ApprovalCheckpoint string        `json:"approval_checkpoint,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
}

// Validate checks if the task has valid field values
func (t *Task) Validate() error {
	if len(t.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(t.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(t.Title))
	}
	if t.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if !t.TaskType.IsValid() {
		return fmt.Errorf("invalid task type: %s", t.TaskType)
	}
	if !t.AgentPersona.IsValid() {
		return fmt.Errorf("invalid agent persona: %s", t.AgentPersona)
	}
	if !t.AutonomyLevel.IsValid() {
		return fmt.Errorf("invalid autonomy level: %s", t.AutonomyLevel)
	}
	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if t.RetryCount < 0 {
		return fmt.Errorf("retry_count cannot be negative")
	}
	if t.AutonomyLevel == AutonomyAuto && t.ApprovalRequired {
		return fmt.Errorf("auto tasks cannot require approval")
	}
	return nil
}

// IsTerminal reports whether the task has reached a terminal status
func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// WatchdogTimeout returns how long a running task may execute before the
// watchdog cancels it: twice the estimate, or a ten minute floor when no
// estimate was provided.
func (t *Task) WatchdogTimeout() time.Duration {
	if t.EstimatedDurationS > 0 {
		return 2 * time.Duration(t.EstimatedDurationS) * time.Second
	}
	return 10 * time.Minute
}

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	StatusPending         TaskStatus = "pending"
	StatusQueued          TaskStatus = "queued"
	StatusRunning         TaskStatus = "running"
	StatusWaitingApproval TaskStatus = "waiting_approval"
	StatusCompleted       TaskStatus = "completed"
	StatusFailed          TaskStatus = "failed"
	StatusCancelled       TaskStatus = "cancelled"
)

// IsValid checks if the status value is valid
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusRunning, StatusWaitingApproval,
		StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status is sticky. Terminal tasks only leave
// this state through the explicit re-queue path (status -> pending with
// retry_count incremented).
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ValidTransitions returns the statuses reachable from this one.
//
// State machine:
//
//	pending ──(ready, supervised)──► waiting_approval (manual pre-gate)
//	pending ──(ready)──► running
//	waiting_approval ──approve──► queued ──► running
//	waiting_approval ──approve review──► completed
//	waiting_approval ──reject──► cancelled
//	running ──review gate──► waiting_approval
//	running ──► completed | failed
//	running ──retry──► pending
//	any non-terminal ──cancel──► cancelled
func (s TaskStatus) ValidTransitions() []TaskStatus {
	switch s {
	case StatusPending:
		return []TaskStatus{StatusQueued, StatusRunning, StatusWaitingApproval, StatusFailed, StatusCancelled}
	case StatusQueued:
		return []TaskStatus{StatusRunning, StatusWaitingApproval, StatusFailed, StatusCancelled}
	case StatusRunning:
		return []TaskStatus{StatusCompleted, StatusFailed, StatusPending, StatusWaitingApproval, StatusCancelled}
	case StatusWaitingApproval:
		return []TaskStatus{StatusQueued, StatusCompleted, StatusCancelled}
	case StatusCompleted, StatusFailed, StatusCancelled:
		return []TaskStatus{} // Terminal; re-queue is an explicit path, not a transition
	default:
		return []TaskStatus{}
	}
}

// CanTransitionTo checks if a transition from this status to the target is valid
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// TaskType categorizes the kind of work a task dispatches to the agent
type TaskType string

const (
	TypeCodeGeneration TaskType = "code-generation"
	TypeTesting        TaskType = "testing"
	TypeSecurityAudit  TaskType = "security-audit"
	TypeDeployment     TaskType = "deployment"
	TypeRefactoring    TaskType = "refactoring"
	TypeBugFix         TaskType = "bug-fix"
	TypeDocumentation  TaskType = "documentation"
	TypeDecomposition  TaskType = "decomposition"
	TypeCodeReview     TaskType = "code-review"
	TypeTechDecision   TaskType = "tech-decision"
)

// IsValid checks if the task type value is valid
func (t TaskType) IsValid() bool {
	switch t {
	case TypeCodeGeneration, TypeTesting, TypeSecurityAudit, TypeDeployment,
		TypeRefactoring, TypeBugFix, TypeDocumentation, TypeDecomposition,
		TypeCodeReview, TypeTechDecision:
		return true
	}
	return false
}

// AgentPersona selects the system-prompt personality on the LLM driver
type AgentPersona string

const (
	PersonaDeveloper     AgentPersona = "developer"
	PersonaTester        AgentPersona = "tester"
	PersonaSecurity      AgentPersona = "security"
	PersonaDevOps        AgentPersona = "devops"
	PersonaProductOwner  AgentPersona = "product-owner"
	PersonaDocumentation AgentPersona = "documentation"
)

// IsValid checks if the agent persona value is valid
func (p AgentPersona) IsValid() bool {
	switch p {
	case PersonaDeveloper, PersonaTester, PersonaSecurity, PersonaDevOps,
		PersonaProductOwner, PersonaDocumentation:
		return true
	}
	return false
}

// AutonomyLevel governs whether approval gates surround task execution
type AutonomyLevel string

const (
	// AutonomyAuto runs tasks end to end with no gates
	AutonomyAuto AutonomyLevel = "auto"
	// AutonomySupervised requires a manual pre-execution gate before dispatch
	AutonomySupervised AutonomyLevel = "supervised"
	// AutonomyApprovalGates requires a review gate on the produced output
	AutonomyApprovalGates AutonomyLevel = "approval_gates"
)

// IsValid checks if the autonomy level value is valid
func (l AutonomyLevel) IsValid() bool {
	switch l {
	case AutonomyAuto, AutonomySupervised, AutonomyApprovalGates:
		return true
	}
	return false
}

// RequiresApproval reports whether tasks at this level carry approval gates
func (l AutonomyLevel) RequiresApproval() bool {
	return l != AutonomyAuto
}

// TaskDependency is a directed "blocks" edge: the task identified by
// DependsOnID must be completed before TaskID becomes dispatchable.
type TaskDependency struct {
	TaskID      string    `json:"task_id"`
	DependsOnID string    `json:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks if the dependency has valid field values
func (d *TaskDependency) Validate() error {
	if d.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if d.DependsOnID == "" {
		return fmt.Errorf("depends_on_id is required")
	}
	if d.TaskID == d.DependsOnID {
		return fmt.Errorf("task cannot depend on itself")
	}
	return nil
}

// TaskFilter is used to filter task list queries
type TaskFilter struct {
	ProjectID string
	Statuses  []TaskStatus
	TaskType  *TaskType
	ParentID  *string
	Limit     int
}
