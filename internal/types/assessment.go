package types

import "time"

// QualityAssessment is the transient result of scoring a task's output for
// auto-approval. It carries no side effects; callers decide what to do with it.
type QualityAssessment struct {
	Score          int            `json:"score"` // 0-100
	Risk           RiskLevel      `json:"risk"`
	CanAutoApprove bool           `json:"can_auto_approve"`
	Reasons        []string       `json:"reasons,omitempty"`
	Checks         []QualityCheck `json:"checks"`
}

// QualityCheck is one named check contributing to the overall score
type QualityCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Score   int    `json:"score"` // 0-100
	Details string `json:"details,omitempty"`
}

// RiskLevel grades how dangerous it would be to auto-approve an output
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// IsValid checks if the risk level value is valid
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// SupervisorStats holds monotonically accumulating supervisor counters plus a
// bounded list of recent errors.
type SupervisorStats struct {
	TasksCompleted      int       `json:"tasks_completed"`
	TasksFailed         int       `json:"tasks_failed"`
	TasksAutoApproved   int       `json:"tasks_auto_approved"`
	TasksManualApproval int       `json:"tasks_manual_approval"`
	TotalRunTimeMs      int64     `json:"total_run_time_ms"`
	RecentErrors        []string  `json:"recent_errors,omitempty"`
	LastActivityAt      time.Time `json:"last_activity_at"`
}

// ExecutionMetric records one execution attempt for a task. Multiple rows
// accumulate as retries occur.
type ExecutionMetric struct {
	ID          int64      `json:"id"`
	TaskID      string     `json:"task_id"`
	Attempt     int        `json:"attempt"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Success     *bool      `json:"success,omitempty"`
	ErrorSample string     `json:"error_sample,omitempty"`
}

// ErrorObservation records one retry outcome against a classifier pattern
type ErrorObservation struct {
	ID        int64     `json:"id"`
	TaskID    string    `json:"task_id"`
	PatternID string    `json:"pattern_id"`
	ErrorText string    `json:"error_text"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}
