package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/internal/types"
)

// SaveErrorPattern upserts the persisted statistics for one classifier pattern
func (s *SQLiteStorage) SaveErrorPattern(ctx context.Context, patternID string, occurrences int, successRate float64) error {
	if patternID == "" {
		return fmt.Errorf("pattern id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO error_patterns (id, occurrences, success_rate, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			occurrences = excluded.occurrences,
			success_rate = excluded.success_rate,
			updated_at = excluded.updated_at
	`, patternID, occurrences, successRate, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save error pattern: %w", err)
	}
	return nil
}

// RecordErrorObservation appends one observed retry outcome
func (s *SQLiteStorage) RecordErrorObservation(ctx context.Context, obs *types.ErrorObservation) error {
	if obs.TaskID == "" {
		return fmt.Errorf("task_id is required")
	}
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO error_observations (task_id, pattern_id, error_text, success, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, obs.TaskID, obs.PatternID, obs.ErrorText, obs.Success, obs.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record error observation: %w", err)
	}
	return nil
}

// GetErrorObservations returns all observations for a task, oldest first
func (s *SQLiteStorage) GetErrorObservations(ctx context.Context, taskID string) ([]*types.ErrorObservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, pattern_id, error_text, success, created_at
		FROM error_observations
		WHERE task_id = ?
		ORDER BY id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get error observations: %w", err)
	}
	defer rows.Close()

	var observations []*types.ErrorObservation
	for rows.Next() {
		var obs types.ErrorObservation
		if err := rows.Scan(&obs.ID, &obs.TaskID, &obs.PatternID, &obs.ErrorText, &obs.Success, &obs.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, &obs)
	}
	return observations, rows.Err()
}
