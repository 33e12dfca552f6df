package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/internal/types"
)

// RecordExecutionMetric appends one attempt row for a task
func (s *SQLiteStorage) RecordExecutionMetric(ctx context.Context, metric *types.ExecutionMetric) error {
	if metric.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if metric.Attempt < 1 {
		return fmt.Errorf("attempt must be positive (got %d)", metric.Attempt)
	}
	if metric.StartedAt.IsZero() {
		metric.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_execution_metrics (task_id, attempt, started_at, finished_at, success, error_sample)
		VALUES (?, ?, ?, ?, ?, ?)
	`, metric.TaskID, metric.Attempt, metric.StartedAt, metric.FinishedAt, metric.Success, metric.ErrorSample)
	if err != nil {
		return fmt.Errorf("failed to record execution metric: %w", err)
	}
	return nil
}

// GetExecutionMetrics returns all attempt rows for a task, oldest first
func (s *SQLiteStorage) GetExecutionMetrics(ctx context.Context, taskID string) ([]*types.ExecutionMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, attempt, started_at, finished_at, success, error_sample
		FROM task_execution_metrics
		WHERE task_id = ?
		ORDER BY attempt ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*types.ExecutionMetric
	for rows.Next() {
		var m types.ExecutionMetric
		var finishedAt sql.NullTime
		var success sql.NullBool
		if err := rows.Scan(&m.ID, &m.TaskID, &m.Attempt, &m.StartedAt, &finishedAt, &success, &m.ErrorSample); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		if finishedAt.Valid {
			m.FinishedAt = &finishedAt.Time
		}
		if success.Valid {
			v := success.Bool
			m.Success = &v
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

// SaveCheckpoint stores a JSON snapshot for a task, replacing any prior one
func (s *SQLiteStorage) SaveCheckpoint(ctx context.Context, taskID string, data interface{}) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_checkpoints (task_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, taskID, string(encoded), time.Now())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint returns the stored snapshot JSON, or "" when none exists
func (s *SQLiteStorage) GetCheckpoint(ctx context.Context, taskID string) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM task_checkpoints WHERE task_id = ?`, taskID).Scan(&data)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return data, nil
}
