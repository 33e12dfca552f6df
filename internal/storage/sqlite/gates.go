package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/internal/types"
)

// CreateGate inserts a pending approval gate. The partial unique index on
// (task_id) WHERE status='pending' rejects a second open gate for the task.
func (s *SQLiteStorage) CreateGate(ctx context.Context, gate *types.ApprovalGate) error {
	if err := gate.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if gate.CreatedAt.IsZero() {
		gate.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO approval_gates (
			id, task_id, gate_type, title, description, review_data,
			status, approver, notes, created_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		gate.ID, gate.TaskID, gate.GateType, gate.Title, gate.Description,
		gate.ReviewData, gate.Status, gate.Approver, gate.Notes,
		gate.CreatedAt, gate.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gate: %w", err)
	}

	return nil
}

const gateColumns = `g.id, g.task_id, g.gate_type, g.title, g.description,
		g.review_data, g.status, g.approver, g.notes, g.created_at, g.resolved_at`

// GetGate retrieves a gate by ID. Returns (nil, nil) when not found.
func (s *SQLiteStorage) GetGate(ctx context.Context, id string) (*types.ApprovalGate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gateColumns+` FROM approval_gates g WHERE g.id = ?`, id)

	gate, err := scanGate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gate: %w", err)
	}
	return gate, nil
}

// GetPendingGate retrieves the single pending gate for a task, if any
func (s *SQLiteStorage) GetPendingGate(ctx context.Context, taskID string) (*types.ApprovalGate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gateColumns+` FROM approval_gates g WHERE g.task_id = ? AND g.status = 'pending'`,
		taskID)

	gate, err := scanGate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending gate: %w", err)
	}
	return gate, nil
}

// ListPendingGates returns all open gates for a project, oldest first
func (s *SQLiteStorage) ListPendingGates(ctx context.Context, projectID string) ([]*types.ApprovalGate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gateColumns+`
		FROM approval_gates g
		JOIN task_queue t ON g.task_id = t.id
		WHERE g.status = 'pending' AND t.project_id = ?
		ORDER BY g.created_at ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending gates: %w", err)
	}
	defer rows.Close()

	var gates []*types.ApprovalGate
	for rows.Next() {
		gate, err := scanGate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gate: %w", err)
		}
		gates = append(gates, gate)
	}
	return gates, rows.Err()
}

// ResolveGate records an approve/reject decision. Returns false when the gate
// was already resolved (or does not exist); the decision is first-writer-wins.
func (s *SQLiteStorage) ResolveGate(ctx context.Context, id string, status types.GateStatus, approver, notes string) (bool, error) {
	if status != types.GateApproved && status != types.GateRejected {
		return false, fmt.Errorf("invalid resolution status: %s", status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE approval_gates
		SET status = ?, approver = ?, notes = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'
	`, status, approver, notes, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve gate: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check resolution: %w", err)
	}
	return n > 0, nil
}

func scanGate(row scanner) (*types.ApprovalGate, error) {
	var gate types.ApprovalGate
	var resolvedAt sql.NullTime

	err := row.Scan(
		&gate.ID, &gate.TaskID, &gate.GateType, &gate.Title, &gate.Description,
		&gate.ReviewData, &gate.Status, &gate.Approver, &gate.Notes,
		&gate.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		gate.ResolvedAt = &resolvedAt.Time
	}
	return &gate, nil
}
