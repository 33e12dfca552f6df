package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/internal/events"
	"github.com/conductorhq/conductor/internal/types"
)

// CreateGate opens a pending gate for a task and moves it to
// waiting_approval with approval_checkpoint pointing at the gate.
func (e *Engine) CreateGate(ctx context.Context, taskID string, gateType types.GateType, title, description, reviewData string) (*types.ApprovalGate, error) {
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s not found", taskID)
	}
	if task.Status.IsTerminal() {
		return nil, fmt.Errorf("cannot gate terminal task %s (status %s)", taskID, task.Status)
	}
	if !task.Status.CanTransitionTo(types.StatusWaitingApproval) {
		return nil, fmt.Errorf("cannot gate task %s in status %s", taskID, task.Status)
	}

	gate := &types.ApprovalGate{
		ID:          uuid.NewString(),
		TaskID:      taskID,
		GateType:    gateType,
		Title:       title,
		Description: description,
		ReviewData:  reviewData,
		Status:      types.GatePending,
		CreatedAt:   time.Now(),
	}
	if err := e.store.CreateGate(ctx, gate); err != nil {
		return nil, fmt.Errorf("failed to create gate: %w", err)
	}

	if err := e.store.UpdateTask(ctx, taskID, map[string]interface{}{
		"status":              types.StatusWaitingApproval,
		"approval_checkpoint": gate.ID,
	}); err != nil {
		return nil, err
	}

	e.bus.Emit(events.TypeTaskApprovalRequired, taskID, map[string]interface{}{
		"gate_id":   gate.ID,
		"gate_type": string(gateType),
		"title":     title,
	})
	return gate, nil
}

// ApproveGate records an approval decision. A manual pre-execution gate
// returns the task to queued; a review gate finalises the task as
// completed with the reviewed output. Returns nil when the gate was
// already resolved; the first decision wins.
func (e *Engine) ApproveGate(ctx context.Context, gateID, approver, notes string) (*types.ApprovalGate, error) {
	gate, err := e.store.GetGate(ctx, gateID)
	if err != nil {
		return nil, err
	}
	if gate == nil {
		return nil, fmt.Errorf("gate %s not found", gateID)
	}

	resolved, err := e.store.ResolveGate(ctx, gateID, types.GateApproved, approver, notes)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, nil
	}

	if gate.GateType == types.GateReview {
		extra := map[string]interface{}{
			"approval_checkpoint": "",
		}
		if gate.ReviewData != "" {
			extra["output_data"] = types.ResultOutput(gate.ReviewData)
		}
		if _, err := e.UpdateStatus(ctx, gate.TaskID, types.StatusCompleted, extra); err != nil {
			return nil, err
		}
	} else {
		if _, err := e.UpdateStatus(ctx, gate.TaskID, types.StatusQueued, map[string]interface{}{
			"approval_checkpoint": "",
		}); err != nil {
			return nil, err
		}
	}

	return e.store.GetGate(ctx, gateID)
}

// RejectGate records a rejection and cancels the task
func (e *Engine) RejectGate(ctx context.Context, gateID, approver, notes string) (*types.ApprovalGate, error) {
	gate, err := e.store.GetGate(ctx, gateID)
	if err != nil {
		return nil, err
	}
	if gate == nil {
		return nil, fmt.Errorf("gate %s not found", gateID)
	}

	resolved, err := e.store.ResolveGate(ctx, gateID, types.GateRejected, approver, notes)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, nil
	}

	if _, err := e.UpdateStatus(ctx, gate.TaskID, types.StatusCancelled, map[string]interface{}{
		"error_message":       types.RejectedGateMessage,
		"approval_checkpoint": "",
	}); err != nil {
		return nil, err
	}

	return e.store.GetGate(ctx, gateID)
}

// ListGates returns all pending gates for the engine's project
func (e *Engine) ListGates(ctx context.Context) ([]*types.ApprovalGate, error) {
	return e.store.ListPendingGates(ctx, e.cfg.ProjectID)
}

// GetGate returns a gate by id, or nil when it does not exist
func (e *Engine) GetGate(ctx context.Context, id string) (*types.ApprovalGate, error) {
	return e.store.GetGate(ctx, id)
}
