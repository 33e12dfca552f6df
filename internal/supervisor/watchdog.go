package supervisor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/conductorhq/conductor/internal/events"
	"github.com/conductorhq/conductor/internal/types"
)

// watchdogLoop periodically cancels running tasks that have exceeded
// their time bound and reschedules them when retry budget remains.
func (s *Supervisor) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.checkStuckTasks(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: watchdog pass failed: %v\n", err)
			}
		}
	}
}

func (s *Supervisor) checkStuckTasks(ctx context.Context) error {
	running, err := s.store.ListTasks(ctx, types.TaskFilter{
		ProjectID: s.cfg.ProjectID,
		Statuses:  []types.TaskStatus{types.StatusRunning},
	})
	if err != nil {
		return err
	}

	for _, task := range running {
		if task.StartedAt == nil {
			continue
		}
		elapsed := time.Since(*task.StartedAt)
		if elapsed <= task.WatchdogTimeout() {
			continue
		}

		s.bus.Emit(events.TypeTaskStuck, task.ID, map[string]interface{}{
			"elapsed_s": int(elapsed.Seconds()),
			"limit_s":   int(task.WatchdogTimeout().Seconds()),
		})

		if task.RetryCount < task.MaxRetries {
			if err := s.rescheduleStuck(ctx, task); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to reschedule stuck task %s: %v\n", task.ID, err)
			}
			continue
		}

		if err := s.queue.Fail(ctx, task.ID,
			fmt.Sprintf("watchdog: exceeded time limit after %d retries", task.RetryCount)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to fail stuck task %s: %v\n", task.ID, err)
		}
	}
	return nil
}

// rescheduleStuck cancels the stuck session, annotates the input with a
// timeout note, and returns the task to pending with its retry count
// bumped.
func (s *Supervisor) rescheduleStuck(ctx context.Context, task *types.Task) error {
	if _, err := s.queue.Cancel(ctx, task.ID); err != nil {
		return err
	}

	budget := task.EstimatedDurationS
	if budget <= 0 {
		budget = int(task.WatchdogTimeout().Seconds())
	}
	note := fmt.Sprintf("Previous attempt timed out after %d s. Please be more concise and complete the work in smaller steps.", budget)

	input := task.InputData.Clone()
	if input == nil {
		input = &types.TaskIO{}
	}
	if input.Context != "" {
		input.Context += "\n\n" + note
	} else {
		input.Context = note
	}
	if err := s.store.UpdateTask(ctx, task.ID, map[string]interface{}{
		"input_data": input,
	}); err != nil {
		return err
	}

	requeued, err := s.queue.Requeue(ctx, task.ID)
	if err != nil {
		return err
	}

	s.touch()
	s.bus.Emit(events.TypeTaskRetried, task.ID, map[string]interface{}{
		"retry_count": requeued.RetryCount,
		"reason":      "watchdog timeout",
	})
	return nil
}
