// Package queue implements the task queue engine: persistence-backed task
// lifecycle, priority plus dependency scheduling, approval gates, and the
// single-task execution loop that drives the LLM agent.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/internal/agent"
	"github.com/conductorhq/conductor/internal/classifier"
	"github.com/conductorhq/conductor/internal/events"
	"github.com/conductorhq/conductor/internal/storage"
	"github.com/conductorhq/conductor/internal/types"
)

const (
	defaultPriority   = 50
	defaultMaxRetries = 3
)

// Config holds queue engine configuration
type Config struct {
	// ProjectID scopes all scheduling to one project
	ProjectID string
	// ProjectPath is handed to the agent driver with each request
	ProjectPath string
	// PollInterval is the idle re-poll delay. Default: 1s
	PollInterval time.Duration
}

// Engine is the task queue engine. One engine serves one project; tasks
// execute strictly one at a time.
type Engine struct {
	cfg        Config
	store      storage.Storage
	driver     agent.Driver
	classifier *classifier.Classifier
	bus        *events.Bus

	mu             sync.Mutex
	running        bool
	paused         bool
	stopCh         chan struct{}
	doneCh         chan struct{}
	currentTaskID  string
	currentSession string
	abortCh        chan struct{}
}

// New creates a queue engine
func New(cfg Config, store storage.Storage, driver agent.Driver, cls *classifier.Classifier) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Engine{
		cfg:        cfg,
		store:      store,
		driver:     driver,
		classifier: cls,
		bus:        events.NewBus(),
	}
}

// Subscribe returns a channel of queue events and a cancel function
func (e *Engine) Subscribe() (<-chan events.Event, func()) {
	return e.bus.Subscribe()
}

// Enqueue inserts a task with status pending and emits task-queued.
// Zero-valued fields receive defaults; the stored task is returned.
func (e *Engine) Enqueue(ctx context.Context, task *types.Task) (*types.Task, error) {
	if task == nil {
		return nil, fmt.Errorf("task is required")
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.ProjectID == "" {
		task.ProjectID = e.cfg.ProjectID
	}
	if task.Priority == 0 {
		task.Priority = defaultPriority
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = defaultMaxRetries
	}
	if task.AutonomyLevel == "" {
		task.AutonomyLevel = types.AutonomyAuto
	}
	if task.AgentPersona == "" {
		task.AgentPersona = types.PersonaDeveloper
	}
	task.Status = types.StatusPending
	task.ApprovalRequired = task.AutonomyLevel.RequiresApproval()
	task.CreatedAt = time.Now()

	if err := e.store.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	e.bus.Emit(events.TypeTaskQueued, task.ID, map[string]interface{}{
		"title":    task.Title,
		"priority": task.Priority,
	})
	return task, nil
}

// Get returns a task by id, or nil when it does not exist
func (e *Engine) Get(ctx context.Context, id string) (*types.Task, error) {
	return e.store.GetTask(ctx, id)
}

// List returns tasks matching the filter in scheduling order
func (e *Engine) List(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	if filter.ProjectID == "" {
		filter.ProjectID = e.cfg.ProjectID
	}
	return e.store.ListTasks(ctx, filter)
}

// TaskNode is one task plus its child tasks
type TaskNode struct {
	Task     *types.Task `json:"task"`
	Children []*TaskNode `json:"children,omitempty"`
}

// Hierarchy returns the task and its descendants as a tree
func (e *Engine) Hierarchy(ctx context.Context, rootID string) (*TaskNode, error) {
	task, err := e.store.GetTask(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", rootID)
	}

	node := &TaskNode{Task: task}
	children, err := e.store.ListTasks(ctx, types.TaskFilter{
		ProjectID: task.ProjectID,
		ParentID:  &task.ID,
	})
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childNode, err := e.Hierarchy(ctx, child.ID)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	return node, nil
}

// UpdateStatus applies a status transition with optional extra column
// updates. started_at is stamped on every entry to running so retried
// attempts measure from their own dispatch; completed_at and
// actual_duration_s are stamped on any terminal status.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status types.TaskStatus, extra map[string]interface{}) (*types.Task, error) {
	task, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", id)
	}
	if !task.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("invalid transition %s -> %s for task %s", task.Status, status, id)
	}

	now := time.Now()
	updates := map[string]interface{}{"status": status}
	for k, v := range extra {
		updates[k] = v
	}

	if status == types.StatusRunning {
		updates["started_at"] = now
	}
	if status.IsTerminal() {
		updates["completed_at"] = now
		if task.StartedAt != nil {
			updates["actual_duration_s"] = int(now.Sub(*task.StartedAt).Seconds())
		}
	}

	if err := e.store.UpdateTask(ctx, id, updates); err != nil {
		return nil, err
	}

	e.emitStatusEvent(id, status)
	return e.store.GetTask(ctx, id)
}

func (e *Engine) emitStatusEvent(taskID string, status types.TaskStatus) {
	switch status {
	case types.StatusRunning:
		e.bus.Emit(events.TypeTaskStarted, taskID, nil)
	case types.StatusCompleted:
		e.bus.Emit(events.TypeTaskCompleted, taskID, nil)
	case types.StatusFailed:
		e.bus.Emit(events.TypeTaskFailed, taskID, nil)
	case types.StatusCancelled:
		e.bus.Emit(events.TypeTaskCancelled, taskID, nil)
	}
}

// Cancel forces a task to cancelled. A running task's agent session is
// aborted first; late driver callbacks for it are discarded. Returns false
// when the task is already terminal.
func (e *Engine) Cancel(ctx context.Context, id string) (bool, error) {
	task, err := e.store.GetTask(ctx, id)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, fmt.Errorf("task %s not found", id)
	}
	if task.Status.IsTerminal() {
		return false, nil
	}

	e.mu.Lock()
	if e.currentTaskID == id {
		e.currentSession = ""
		if e.abortCh != nil {
			close(e.abortCh)
			e.abortCh = nil
		}
		e.driver.CancelCurrent()
	}
	e.mu.Unlock()

	if task.Status == types.StatusWaitingApproval {
		if gate, err := e.store.GetPendingGate(ctx, id); err == nil && gate != nil {
			_, _ = e.store.ResolveGate(ctx, gate.ID, types.GateRejected, "system", "task cancelled")
		}
	}

	if _, err := e.UpdateStatus(ctx, id, types.StatusCancelled, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Fail forces a non-terminal task to failed with the given message,
// aborting its agent session if one is in flight.
func (e *Engine) Fail(ctx context.Context, id, errMsg string) error {
	task, err := e.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s not found", id)
	}
	if task.Status.IsTerminal() {
		return fmt.Errorf("task %s is already terminal (status %s)", id, task.Status)
	}

	e.mu.Lock()
	if e.currentTaskID == id {
		e.currentSession = ""
		if e.abortCh != nil {
			close(e.abortCh)
			e.abortCh = nil
		}
		e.driver.CancelCurrent()
	}
	e.mu.Unlock()

	_, err = e.UpdateStatus(ctx, id, types.StatusFailed, map[string]interface{}{
		"error_message": errMsg,
	})
	return err
}

// Requeue returns a terminal task to pending with retry_count incremented.
// This is the only path out of a terminal status.
func (e *Engine) Requeue(ctx context.Context, id string) (*types.Task, error) {
	task, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", id)
	}
	if !task.Status.IsTerminal() {
		return nil, fmt.Errorf("task %s is not terminal (status %s)", id, task.Status)
	}

	// Stale timestamps would make the next attempt look ancient to the
	// watchdog, so both are cleared.
	updates := map[string]interface{}{
		"status":       types.StatusPending,
		"retry_count":  task.RetryCount + 1,
		"started_at":   nil,
		"completed_at": nil,
	}
	if err := e.store.UpdateTask(ctx, id, updates); err != nil {
		return nil, err
	}
	return e.store.GetTask(ctx, id)
}

// Reorder changes a task's priority
func (e *Engine) Reorder(ctx context.Context, id string, priority int) error {
	return e.store.UpdateTask(ctx, id, map[string]interface{}{"priority": priority})
}

// UpdateAutonomyLevel changes a task's autonomy level and recomputes
// approval_required from it
func (e *Engine) UpdateAutonomyLevel(ctx context.Context, id string, level types.AutonomyLevel) error {
	if !level.IsValid() {
		return fmt.Errorf("invalid autonomy level: %s", level)
	}
	return e.store.UpdateTask(ctx, id, map[string]interface{}{
		"autonomy_level":    level,
		"approval_required": level.RequiresApproval(),
	})
}

// AddDependency records that task depends on dependsOn
func (e *Engine) AddDependency(ctx context.Context, taskID, dependsOnID string) error {
	return e.store.AddDependency(ctx, &types.TaskDependency{
		TaskID:      taskID,
		DependsOnID: dependsOnID,
	})
}
