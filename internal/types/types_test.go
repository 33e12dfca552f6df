package types

import (
	"testing"
	"time"
)

func validTask() *Task {
	return &Task{
		ID:            "t1",
		ProjectID:     "proj",
		Title:         "a task",
		TaskType:      TypeCodeGeneration,
		AgentPersona:  PersonaDeveloper,
		AutonomyLevel: AutonomyAuto,
		Status:        StatusPending,
	}
}

func TestTaskValidate(t *testing.T) {
	if err := validTask().Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Task)
	}{
		{"missing title", func(task *Task) { task.Title = "" }},
		{"missing project", func(task *Task) { task.ProjectID = "" }},
		{"bad status", func(task *Task) { task.Status = "sleeping" }},
		{"bad type", func(task *Task) { task.TaskType = "gardening" }},
		{"bad persona", func(task *Task) { task.AgentPersona = "wizard" }},
		{"bad autonomy", func(task *Task) { task.AutonomyLevel = "yolo" }},
		{"negative retries", func(task *Task) { task.MaxRetries = -1 }},
		{"auto with approval", func(task *Task) { task.ApprovalRequired = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := validTask()
			tc.mutate(task)
			if err := task.Validate(); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to TaskStatus
	}{
		{StatusPending, StatusRunning},
		{StatusPending, StatusWaitingApproval},
		{StatusPending, StatusCancelled},
		{StatusQueued, StatusRunning},
		{StatusRunning, StatusCompleted},
		{StatusRunning, StatusFailed},
		{StatusRunning, StatusPending},
		{StatusRunning, StatusWaitingApproval},
		{StatusWaitingApproval, StatusQueued},
		{StatusWaitingApproval, StatusCompleted},
		{StatusWaitingApproval, StatusCancelled},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct {
		from, to TaskStatus
	}{
		{StatusPending, StatusCompleted},
		{StatusQueued, StatusPending},
		{StatusWaitingApproval, StatusRunning},
		{StatusWaitingApproval, StatusFailed},
		{StatusCompleted, StatusRunning},
		{StatusFailed, StatusPending},
		{StatusCancelled, StatusQueued},
	}
	for _, tc := range forbidden {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, status := range []TaskStatus{StatusCompleted, StatusFailed, StatusCancelled} {
		if !status.IsTerminal() {
			t.Errorf("%s should be terminal", status)
		}
		if len(status.ValidTransitions()) != 0 {
			t.Errorf("%s should have no transitions", status)
		}
	}
}

func TestWatchdogTimeout(t *testing.T) {
	task := validTask()

	task.EstimatedDurationS = 60
	if got := task.WatchdogTimeout(); got != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m for a 60s estimate", got)
	}

	// The ten minute floor applies only when no estimate exists
	task.EstimatedDurationS = 0
	if got := task.WatchdogTimeout(); got != 10*time.Minute {
		t.Errorf("timeout = %v, want 10m without an estimate", got)
	}

	task.EstimatedDurationS = 30
	if got := task.WatchdogTimeout(); got != time.Minute {
		t.Errorf("timeout = %v, want 1m for a 30s estimate", got)
	}
}

func TestAutonomyRequiresApproval(t *testing.T) {
	if AutonomyAuto.RequiresApproval() {
		t.Error("auto must not require approval")
	}
	if !AutonomySupervised.RequiresApproval() || !AutonomyApprovalGates.RequiresApproval() {
		t.Error("supervised and approval_gates must require approval")
	}
}

func TestDependencyValidate(t *testing.T) {
	dep := &TaskDependency{TaskID: "a", DependsOnID: "b"}
	if err := dep.Validate(); err != nil {
		t.Fatalf("valid dependency rejected: %v", err)
	}

	self := &TaskDependency{TaskID: "a", DependsOnID: "a"}
	if err := self.Validate(); err == nil {
		t.Error("self-dependency should be rejected")
	}
}
