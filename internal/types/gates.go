package types

import (
	"fmt"
	"time"
)

// ApprovalGate is a pause point blocking a task from progressing until a
// decision is recorded. A task has at most one pending gate at a time; while
// it exists the task sits in waiting_approval with its approval_checkpoint
// pointing at the gate.
type ApprovalGate struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	GateType    GateType   `json:"gate_type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ReviewData  string     `json:"review_data,omitempty"`
	Status      GateStatus `json:"status"`
	Approver    string     `json:"approver,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Validate checks if the gate has valid field values
func (g *ApprovalGate) Validate() error {
	if g.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if g.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !g.GateType.IsValid() {
		return fmt.Errorf("invalid gate type: %s", g.GateType)
	}
	if !g.Status.IsValid() {
		return fmt.Errorf("invalid gate status: %s", g.Status)
	}
	return nil
}

// GateType identifies the kind of checkpoint a gate represents
type GateType string

const (
	// GateManual is a pre-execution human checkpoint
	GateManual GateType = "manual"
	// GateReview is a post-execution output review
	GateReview GateType = "review"
	// GateAutomatic is resolved without human involvement
	GateAutomatic GateType = "automatic"
	// GateCompliance is a policy-scoped checkpoint
	GateCompliance GateType = "compliance"
)

// IsValid checks if the gate type value is valid
func (t GateType) IsValid() bool {
	switch t {
	case GateManual, GateReview, GateAutomatic, GateCompliance:
		return true
	}
	return false
}

// GateStatus represents the decision state of a gate
type GateStatus string

const (
	GatePending  GateStatus = "pending"
	GateApproved GateStatus = "approved"
	GateRejected GateStatus = "rejected"
)

// IsValid checks if the gate status value is valid
func (s GateStatus) IsValid() bool {
	switch s {
	case GatePending, GateApproved, GateRejected:
		return true
	}
	return false
}

// RejectedGateMessage is recorded on tasks cancelled by gate rejection
const RejectedGateMessage = "Rejected at approval gate"
