package sqlite

import (
	"context"
	"fmt"

	"github.com/conductorhq/conductor/internal/types"
)

// AddDependency inserts a "blocks" edge after verifying both endpoints exist
// and the edge would not close a cycle. A cyclic edge would starve the
// ready-task scan forever, so it is rejected at insert time.
func (s *SQLiteStorage) AddDependency(ctx context.Context, dep *types.TaskDependency) error {
	if err := dep.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	for _, id := range []string{dep.TaskID, dep.DependsOnID} {
		task, err := s.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %s not found", id)
		}
	}

	cyclic, err := s.wouldCreateCycle(ctx, dep.TaskID, dep.DependsOnID)
	if err != nil {
		return err
	}
	if cyclic {
		return fmt.Errorf("dependency %s -> %s would create a cycle", dep.TaskID, dep.DependsOnID)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_dependencies (task_id, depends_on_id)
		VALUES (?, ?)
		ON CONFLICT (task_id, depends_on_id) DO NOTHING
	`, dep.TaskID, dep.DependsOnID)
	if err != nil {
		return fmt.Errorf("failed to insert dependency: %w", err)
	}

	return nil
}

// wouldCreateCycle checks whether taskID is reachable from dependsOnID over
// existing edges. If it is, adding taskID -> dependsOnID closes a loop.
func (s *SQLiteStorage) wouldCreateCycle(ctx context.Context, taskID, dependsOnID string) (bool, error) {
	var found int
	err := s.db.QueryRowContext(ctx, `
		WITH RECURSIVE chain(id) AS (
			SELECT depends_on_id FROM task_dependencies WHERE task_id = ?
			UNION
			SELECT td.depends_on_id FROM task_dependencies td
			JOIN chain c ON td.task_id = c.id
		)
		SELECT COUNT(*) FROM chain WHERE id = ?
	`, dependsOnID, taskID).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("failed to check for cycle: %w", err)
	}
	return found > 0, nil
}

// RemoveDependency deletes a "blocks" edge
func (s *SQLiteStorage) RemoveDependency(ctx context.Context, taskID, dependsOnID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM task_dependencies WHERE task_id = ? AND depends_on_id = ?
	`, taskID, dependsOnID)
	if err != nil {
		return fmt.Errorf("failed to remove dependency: %w", err)
	}
	return nil
}

// GetDependencies returns the tasks that block the given task
func (s *SQLiteStorage) GetDependencies(ctx context.Context, taskID string) ([]*types.Task, error) {
	return s.queryDependencyTasks(ctx, `
		SELECT `+taskColumnsFor("t")+`
		FROM task_queue t
		JOIN task_dependencies d ON t.id = d.depends_on_id
		WHERE d.task_id = ?
		ORDER BY t.created_at ASC
	`, taskID)
}

// GetDependents returns the tasks blocked by the given task
func (s *SQLiteStorage) GetDependents(ctx context.Context, taskID string) ([]*types.Task, error) {
	return s.queryDependencyTasks(ctx, `
		SELECT `+taskColumnsFor("t")+`
		FROM task_queue t
		JOIN task_dependencies d ON t.id = d.task_id
		WHERE d.depends_on_id = ?
		ORDER BY t.created_at ASC
	`, taskID)
}

func (s *SQLiteStorage) queryDependencyTasks(ctx context.Context, query, taskID string) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
