package queue

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/conductorhq/conductor/internal/agent"
	"github.com/conductorhq/conductor/internal/events"
	"github.com/conductorhq/conductor/internal/types"
)

// Start begins the execution loop. It returns immediately; the loop runs
// until Stop is called or the queue drains.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("queue is already running")
	}
	e.running = true
	e.paused = false
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	e.bus.Emit(events.TypeQueueStarted, "", map[string]interface{}{
		"project_id": e.cfg.ProjectID,
	})

	go e.runLoop(ctx)
	return nil
}

// Pause suspends task selection; the in-flight task finishes normally
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.running || e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true
	e.mu.Unlock()
	e.bus.Emit(events.TypeQueuePaused, "", nil)
}

// Resume restarts task selection after a pause
func (e *Engine) Resume() {
	e.mu.Lock()
	if !e.running || !e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = false
	e.mu.Unlock()
	e.bus.Emit(events.TypeQueueResumed, "", nil)
}

// Stop shuts the loop down and waits for it to exit
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	stopCh := e.stopCh
	doneCh := e.doneCh
	e.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the execution loop is active
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// IsPaused reports whether the loop is paused
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) runLoop(ctx context.Context) {
	defer func() {
		e.mu.Lock()
		e.running = false
		close(e.doneCh)
		e.mu.Unlock()
	}()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if e.IsPaused() {
			if !e.sleep(e.cfg.PollInterval) {
				return
			}
			continue
		}

		task, err := e.selectReady(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: ready-task scan failed: %v\n", err)
			if !e.sleep(e.cfg.PollInterval) {
				return
			}
			continue
		}

		if task == nil {
			drained, err := e.isDrained(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to count tasks: %v\n", err)
			} else if drained {
				e.bus.Emit(events.TypeQueueCompleted, "", map[string]interface{}{
					"project_id": e.cfg.ProjectID,
				})
				return
			}
			if !e.sleep(e.cfg.PollInterval) {
				return
			}
			continue
		}

		e.executeTask(ctx, task)
	}
}

// sleep waits for the given duration, returning false if the loop should
// exit instead
func (e *Engine) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-e.stopCh:
		return false
	}
}

// isDrained reports whether no dispatchable or gated work remains
func (e *Engine) isDrained(ctx context.Context) (bool, error) {
	counts, err := e.store.CountTasksByStatus(ctx, e.cfg.ProjectID)
	if err != nil {
		return false, err
	}
	open := counts[types.StatusPending] + counts[types.StatusQueued] + counts[types.StatusWaitingApproval]
	return open == 0, nil
}

// selectReady scans pending and queued tasks in priority order and returns
// the first whose blocking dependencies are all completed. A supervised
// task still in pending is not dispatched; it gets a manual pre-execution
// gate instead and the scan continues past it.
func (e *Engine) selectReady(ctx context.Context) (*types.Task, error) {
	tasks, err := e.store.ListTasks(ctx, types.TaskFilter{
		ProjectID: e.cfg.ProjectID,
		Statuses:  []types.TaskStatus{types.StatusPending, types.StatusQueued},
	})
	if err != nil {
		return nil, err
	}

	for _, task := range tasks {
		ready, err := e.dependenciesCompleted(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}

		if task.AutonomyLevel == types.AutonomySupervised && task.Status == types.StatusPending {
			if _, err := e.CreateGate(ctx, task.ID, types.GateManual,
				"Approve execution of: "+task.Title,
				"Pre-execution approval required by supervised autonomy", ""); err != nil {
				return nil, err
			}
			continue
		}

		return task, nil
	}
	return nil, nil
}

func (e *Engine) dependenciesCompleted(ctx context.Context, taskID string) (bool, error) {
	deps, err := e.store.GetDependencies(ctx, taskID)
	if err != nil {
		return false, err
	}
	for _, dep := range deps {
		if dep.Status != types.StatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

// buildPrompt assembles the agent prompt from the task's input bag. An
// explicit prompt wins over description and title; context and parent
// output are prepended when present.
func buildPrompt(task *types.Task) string {
	base := task.Description
	if base == "" {
		base = task.Title
	}

	var input types.TaskIO
	if task.InputData != nil {
		input = *task.InputData
	}
	if input.Prompt != "" {
		base = input.Prompt
	}

	var b strings.Builder
	if input.Context != "" {
		b.WriteString("Context:\n")
		b.WriteString(input.Context)
		b.WriteString("\n\nTask:\n")
	}
	if input.ParentOutput != "" {
		b.WriteString("Previous output:\n")
		b.WriteString(input.ParentOutput)
		b.WriteString("\n\n")
	}
	b.WriteString(base)
	return b.String()
}

// executeTask runs one task to a decision point: completion, a review
// gate, a retry re-queue, or terminal failure.
func (e *Engine) executeTask(ctx context.Context, task *types.Task) {
	sessionID := "task_" + task.ID
	attempt := task.RetryCount + 1
	startedAt := time.Now()

	abortCh := make(chan struct{})
	e.mu.Lock()
	e.currentTaskID = task.ID
	e.currentSession = sessionID
	e.abortCh = abortCh
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		if e.currentTaskID == task.ID {
			e.currentTaskID = ""
			e.currentSession = ""
			e.abortCh = nil
		}
		e.mu.Unlock()
	}()

	if err := e.store.SaveCheckpoint(ctx, task.ID, map[string]interface{}{
		"task_id":    task.ID,
		"attempt":    attempt,
		"session_id": sessionID,
		"dispatched": startedAt,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save checkpoint for %s: %v\n", task.ID, err)
	}

	task, err := e.UpdateStatus(ctx, task.ID, types.StatusRunning, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to start task: %v\n", err)
		return
	}

	sub, cancelSub := e.driver.Subscribe()
	defer cancelSub()

	req := agent.Request{
		SessionID:   sessionID,
		Prompt:      buildPrompt(task),
		ProjectPath: e.cfg.ProjectPath,
		Persona:     string(task.AgentPersona),
	}
	if err := e.driver.Send(ctx, req); err != nil {
		e.handleFailure(ctx, task, attempt, startedAt, fmt.Sprintf("driver dispatch failed: %v", err))
		return
	}

	for {
		select {
		case <-abortCh:
			// Cancel already forced the terminal transition
			e.recordAttempt(ctx, task.ID, attempt, startedAt, nil, "cancelled")
			return
		case <-e.stopCh:
			// Return the in-flight task to the queue for the next run
			e.driver.CancelCurrent()
			if err := e.store.UpdateTask(ctx, task.ID, map[string]interface{}{
				"status": types.StatusPending,
			}); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to reset task %s on shutdown: %v\n", task.ID, err)
			}
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if ev.SessionID != sessionID {
				continue
			}
			switch ev.Kind {
			case agent.EventStream:
				e.bus.Emit(events.TypeTaskProgress, task.ID, map[string]interface{}{
					"content": ev.Content,
				})
			case agent.EventComplete:
				e.handleCompletion(ctx, task, attempt, startedAt, ev.Content)
				return
			case agent.EventError:
				e.handleFailure(ctx, task, attempt, startedAt, ev.Err.Error())
				return
			}
		}
	}
}

func (e *Engine) handleCompletion(ctx context.Context, task *types.Task, attempt int, startedAt time.Time, output string) {
	e.recordRetryOutcome(ctx, task, true)
	e.recordAttempt(ctx, task.ID, attempt, startedAt, boolPtr(true), "")

	if task.AutonomyLevel == types.AutonomyApprovalGates {
		if _, err := e.CreateGate(ctx, task.ID, types.GateReview,
			"Review output of: "+task.Title,
			"Post-execution output review", output); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to create review gate for %s: %v\n", task.ID, err)
		}
		return
	}

	if _, err := e.UpdateStatus(ctx, task.ID, types.StatusCompleted, map[string]interface{}{
		"output_data": types.ResultOutput(output),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to complete task %s: %v\n", task.ID, err)
	}
}

func (e *Engine) handleFailure(ctx context.Context, task *types.Task, attempt int, startedAt time.Time, errText string) {
	e.recordRetryOutcome(ctx, task, false)
	e.recordAttempt(ctx, task.ID, attempt, startedAt, boolPtr(false), errText)

	analysis := e.classifier.Classify(errText, task.RetryCount, task.MaxRetries)

	if analysis.Retryable && task.RetryCount < task.MaxRetries {
		enriched := e.classifier.EnrichInput(task.InputData, analysis, errText)
		if err := e.store.UpdateTask(ctx, task.ID, map[string]interface{}{
			"status":        types.StatusPending,
			"retry_count":   task.RetryCount + 1,
			"input_data":    enriched,
			"error_message": errText,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to re-queue task %s: %v\n", task.ID, err)
			return
		}
		e.bus.Emit(events.TypeTaskRetried, task.ID, map[string]interface{}{
			"retry_count": task.RetryCount + 1,
			"kind":        string(analysis.Kind),
			"action":      string(analysis.Action),
		})
		return
	}

	if _, err := e.UpdateStatus(ctx, task.ID, types.StatusFailed, map[string]interface{}{
		"error_message": errText,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to fail task %s: %v\n", task.ID, err)
	}
}

// recordRetryOutcome feeds the classifier the result of a retry attempt.
// The prior error lives at the tail of the input bag's previous_errors.
func (e *Engine) recordRetryOutcome(ctx context.Context, task *types.Task, success bool) {
	if task.RetryCount == 0 || task.InputData == nil || len(task.InputData.PreviousErrors) == 0 {
		return
	}
	prior := task.InputData.PreviousErrors[len(task.InputData.PreviousErrors)-1]
	if err := e.classifier.RecordOutcome(ctx, task.ID, prior, success); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record retry outcome: %v\n", err)
	}
}

func (e *Engine) recordAttempt(ctx context.Context, taskID string, attempt int, startedAt time.Time, success *bool, errText string) {
	finished := time.Now()
	metric := &types.ExecutionMetric{
		TaskID:      taskID,
		Attempt:     attempt,
		StartedAt:   startedAt,
		FinishedAt:  &finished,
		Success:     success,
		ErrorSample: errText,
	}
	if err := e.store.RecordExecutionMetric(ctx, metric); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record execution metric: %v\n", err)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
