package supervisor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/conductorhq/conductor/internal/agent"
	"github.com/conductorhq/conductor/internal/classifier"
	"github.com/conductorhq/conductor/internal/events"
	"github.com/conductorhq/conductor/internal/queue"
	"github.com/conductorhq/conductor/internal/resolver"
	"github.com/conductorhq/conductor/internal/storage/sqlite"
	"github.com/conductorhq/conductor/internal/types"
)

func newHarness(t *testing.T, cfg Config, script ...agent.ScriptedResult) (*Supervisor, *queue.Engine, *sqlite.SQLiteStorage) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	driver := agent.NewScriptedDriver(script...)
	q := queue.New(queue.Config{
		ProjectID:    "proj",
		PollInterval: 10 * time.Millisecond,
	}, store, driver, classifier.New(store))

	if cfg.ProjectID == "" {
		cfg.ProjectID = "proj"
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 20 * time.Millisecond
	}
	if cfg.WatchdogInterval == 0 {
		cfg.WatchdogInterval = 25 * time.Millisecond
	}
	if cfg.MonitorInterval == 0 {
		cfg.MonitorInterval = 50 * time.Millisecond
	}
	if cfg.MaxIdle == 0 {
		cfg.MaxIdle = time.Hour
	}
	if cfg.AutoApproveThreshold == 0 {
		cfg.AutoApproveThreshold = 70
	}

	s := New(cfg, q, resolver.New(), store)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s, q, store
}

func waitFor(t *testing.T, ch <-chan events.Event, eventType events.Type, taskID string) events.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == eventType && (taskID == "" || ev.TaskID == taskID) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s (task %q)", eventType, taskID)
		}
	}
}

func newTask(title string, level types.AutonomyLevel) *types.Task {
	return &types.Task{
		Title:         title,
		Description:   "do " + title,
		TaskType:      types.TypeDocumentation,
		AgentPersona:  types.PersonaDocumentation,
		AutonomyLevel: level,
	}
}

func TestSupervisorStartsQueueAndCountsCompletions(t *testing.T) {
	s, q, _ := newHarness(t, Config{EnableAutoApproval: false},
		agent.ScriptedResult{Output: "# Done\n\nThe docs are written. Example:\n\n```sh\nconductor run\n```"})
	ctx := context.Background()

	sub, cancel := s.Subscribe()
	defer cancel()

	task, err := q.Enqueue(ctx, newTask("write docs", types.AutonomyAuto))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, sub, events.TypeAutonomousStarted, "")

	qsub, qcancel := q.Subscribe()
	defer qcancel()
	waitFor(t, qsub, events.TypeTaskCompleted, task.ID)

	deadline := time.After(2 * time.Second)
	for {
		if s.Stats().TasksCompleted == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("stats never recorded the completion: %+v", s.Stats())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSweepAutoApprovesGoodOutput(t *testing.T) {
	s, q, store := newHarness(t, Config{EnableAutoApproval: true, AutoApproveThreshold: 70},
		agent.ScriptedResult{Output: "# Usage\n\nRun the binary. Example:\n\n```sh\nconductor run\n```"})
	ctx := context.Background()

	sub, cancel := s.Subscribe()
	defer cancel()

	task, err := q.Enqueue(ctx, newTask("document the CLI", types.AutonomyApprovalGates))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, sub, events.TypeAutoApproved, task.ID)

	got, _ := store.GetTask(ctx, task.ID)
	if got.Status != types.StatusCompleted {
		t.Errorf("status = %s, want completed after auto-approval", got.Status)
	}
	if got.OutputData == nil || !strings.Contains(got.OutputData.Result, "# Usage") {
		t.Errorf("output = %+v", got.OutputData)
	}
	if s.Stats().TasksAutoApproved != 1 {
		t.Errorf("auto approved = %d, want 1", s.Stats().TasksAutoApproved)
	}
}

func TestSweepFlagsManualGateWithoutOutput(t *testing.T) {
	s, q, store := newHarness(t, Config{EnableAutoApproval: true, AutoApproveThreshold: 70})
	ctx := context.Background()

	sub, cancel := s.Subscribe()
	defer cancel()

	task, err := q.Enqueue(ctx, newTask("needs sign-off", types.AutonomySupervised))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	ev := waitFor(t, sub, events.TypeManualApprovalNeeded, task.ID)
	reasons, _ := ev.Data["reasons"].([]string)
	found := false
	for _, r := range reasons {
		if r == "No output produced" {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want No output produced", reasons)
	}

	gate, _ := store.GetPendingGate(ctx, task.ID)
	if gate == nil {
		t.Fatal("manual gate should remain pending")
	}
	if s.Stats().TasksManualApproval != 1 {
		t.Errorf("manual approvals = %d, want 1", s.Stats().TasksManualApproval)
	}

	// A later sweep must not re-notify the same gate
	time.Sleep(100 * time.Millisecond)
	if s.Stats().TasksManualApproval != 1 {
		t.Errorf("manual approvals = %d after re-sweep, want 1", s.Stats().TasksManualApproval)
	}
}

func TestSweepNeverAutoApprovesCriticalRisk(t *testing.T) {
	s, q, store := newHarness(t, Config{EnableAutoApproval: true, AutoApproveThreshold: 70},
		agent.ScriptedResult{Output: "Cleanup complete. I ran rm -rf /var/cache to free the disk as part of the fix."})
	ctx := context.Background()

	sub, cancel := s.Subscribe()
	defer cancel()

	task, err := q.Enqueue(ctx, newTask("clean disk", types.AutonomyApprovalGates))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	ev := waitFor(t, sub, events.TypeManualApprovalNeeded, task.ID)
	if risk, _ := ev.Data["risk"].(string); risk != "critical" {
		t.Errorf("risk = %q, want critical", risk)
	}

	gate, _ := store.GetPendingGate(ctx, task.ID)
	if gate == nil {
		t.Fatal("gate must remain pending for critical risk")
	}
	if s.Stats().TasksAutoApproved != 0 {
		t.Errorf("auto approved = %d, want 0", s.Stats().TasksAutoApproved)
	}
}

func TestWatchdogReschedulesStuckTask(t *testing.T) {
	s, _, store := newHarness(t, Config{EnableAutoApproval: false, MaxIdle: time.Hour},
		agent.ScriptedResult{Output: "made it this time"})
	ctx := context.Background()

	sub, cancel := s.Subscribe()
	defer cancel()

	// A task that has been running well past twice its estimate
	startedAt := time.Now().Add(-130 * time.Second)
	task := &types.Task{
		ID:                 "stuck-1",
		ProjectID:          "proj",
		Title:              "slow work",
		TaskType:           types.TypeCodeGeneration,
		AgentPersona:       types.PersonaDeveloper,
		AutonomyLevel:      types.AutonomyAuto,
		Status:             types.StatusRunning,
		MaxRetries:         3,
		EstimatedDurationS: 60,
		StartedAt:          &startedAt,
	}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, sub, events.TypeTaskStuck, task.ID)
	waitFor(t, sub, events.TypeTaskRetried, task.ID)

	got, _ := store.GetTask(ctx, task.ID)
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
	if got.InputData == nil || !strings.Contains(got.InputData.Context, "timed out after 60 s") {
		t.Errorf("input context = %+v, missing timeout note", got.InputData)
	}
}

func TestWatchdogFailsExhaustedTask(t *testing.T) {
	s, _, store := newHarness(t, Config{EnableAutoApproval: false, MaxIdle: time.Hour})
	ctx := context.Background()

	sub, cancel := s.Subscribe()
	defer cancel()

	startedAt := time.Now().Add(-15 * time.Minute)
	task := &types.Task{
		ID:            "stuck-2",
		ProjectID:     "proj",
		Title:         "hopeless work",
		TaskType:      types.TypeCodeGeneration,
		AgentPersona:  types.PersonaDeveloper,
		AutonomyLevel: types.AutonomyAuto,
		Status:        types.StatusRunning,
		RetryCount:    3,
		MaxRetries:    3,
		StartedAt:     &startedAt,
	}
	if err := store.CreateTask(ctx, task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, sub, events.TypeTaskStuck, task.ID)

	deadline := time.After(2 * time.Second)
	for {
		got, _ := store.GetTask(ctx, task.ID)
		if got.Status == types.StatusFailed {
			if !strings.Contains(got.ErrorMessage, "watchdog") {
				t.Errorf("error message = %q", got.ErrorMessage)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("task never failed, status = %s", got.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestIdleTimeoutStopsSupervisor(t *testing.T) {
	s, _, _ := newHarness(t, Config{EnableAutoApproval: false, MaxIdle: 50 * time.Millisecond})
	ctx := context.Background()

	sub, cancel := s.Subscribe()
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, sub, events.TypeAutonomousIdleTimeout, "")

	deadline := time.After(2 * time.Second)
	for s.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("supervisor still running after idle timeout")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestPauseAndResumeForwardToQueue(t *testing.T) {
	s, q, _ := newHarness(t, Config{EnableAutoApproval: false},
		agent.ScriptedResult{Hang: true})
	ctx := context.Background()

	sub, cancel := s.Subscribe()
	defer cancel()

	if _, err := q.Enqueue(ctx, newTask("long job", types.AutonomyAuto)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for !q.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("queue never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.Pause()
	waitFor(t, sub, events.TypeAutonomousPaused, "")
	if !q.IsPaused() {
		t.Error("queue should be paused")
	}

	s.Resume()
	waitFor(t, sub, events.TypeAutonomousResumed, "")
	if q.IsPaused() {
		t.Error("queue should be resumed")
	}
}
