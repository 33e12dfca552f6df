package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/conductorhq/conductor/internal/types"
)

// SQLiteStorage implements the Storage interface using SQLite.
// Writes are serialised by SQLite's single-writer lock; the busy timeout in
// the DSN gives bounded retry when another writer holds it.
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL gives lock-free snapshot reads while a writer is active
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives on a single connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// CreateTask inserts a new task row
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *types.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	inputJSON, err := marshalIO(task.InputData)
	if err != nil {
		return fmt.Errorf("failed to encode input data: %w", err)
	}
	outputJSON, err := marshalIONullable(task.OutputData)
	if err != nil {
		return fmt.Errorf("failed to encode output data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_queue (
			id, project_id, roadmap_id, parent_id, title, description,
			task_type, agent_persona, autonomy_level, approval_required,
			status, priority, retry_count, max_retries,
			estimated_duration_s, actual_duration_s,
			input_data, output_data, error_message, approval_checkpoint,
			created_at, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID, task.ProjectID, nullString(task.RoadmapID), nullString(task.ParentID),
		task.Title, task.Description, task.TaskType, task.AgentPersona,
		task.AutonomyLevel, task.ApprovalRequired, task.Status, task.Priority,
		task.RetryCount, task.MaxRetries, task.EstimatedDurationS, task.ActualDurationS,
		inputJSON, outputJSON, task.ErrorMessage, task.ApprovalCheckpoint,
		task.CreatedAt, task.StartedAt, task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

const taskColumns = `id, project_id, roadmap_id, parent_id, title, description,
		task_type, agent_persona, autonomy_level, approval_required,
		status, priority, retry_count, max_retries,
		estimated_duration_s, actual_duration_s,
		input_data, output_data, error_message, approval_checkpoint,
		created_at, started_at, completed_at`

// GetTask retrieves a task by ID. Returns (nil, nil) when not found.
func (s *SQLiteStorage) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM task_queue WHERE id = ?`, id)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// Allowed fields for update to prevent SQL injection
var allowedTaskUpdateFields = map[string]bool{
	"status":               true,
	"priority":             true,
	"title":                true,
	"description":          true,
	"autonomy_level":       true,
	"approval_required":    true,
	"retry_count":          true,
	"max_retries":          true,
	"estimated_duration_s": true,
	"actual_duration_s":    true,
	"input_data":           true,
	"output_data":          true,
	"error_message":        true,
	"approval_checkpoint":  true,
	"started_at":           true,
	"completed_at":         true,
}

// UpdateTask applies a partial update to a task row
func (s *SQLiteStorage) UpdateTask(ctx context.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	setClauses := []string{}
	args := []interface{}{}

	for key, value := range updates {
		if !allowedTaskUpdateFields[key] {
			return fmt.Errorf("invalid field for update: %s", key)
		}

		switch key {
		case "status":
			if status, ok := value.(types.TaskStatus); ok {
				if !status.IsValid() {
					return fmt.Errorf("invalid status: %s", status)
				}
				value = string(status)
			}
		case "autonomy_level":
			if level, ok := value.(types.AutonomyLevel); ok {
				if !level.IsValid() {
					return fmt.Errorf("invalid autonomy level: %s", level)
				}
				value = string(level)
			}
		case "input_data", "output_data":
			if io, ok := value.(*types.TaskIO); ok {
				encoded, err := marshalIO(io)
				if err != nil {
					return fmt.Errorf("failed to encode %s: %w", key, err)
				}
				value = encoded
			}
		}

		setClauses = append(setClauses, fmt.Sprintf("%s = ?", key))
		args = append(args, value)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE task_queue SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s not found", id)
	}

	return nil
}

// ListTasks returns tasks matching the filter, ordered by priority (higher
// first) with creation time as the tiebreak (earlier first). This is the
// scheduler's scan order.
func (s *SQLiteStorage) ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	whereClauses := []string{}
	args := []interface{}{}

	if filter.ProjectID != "" {
		whereClauses = append(whereClauses, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		whereClauses = append(whereClauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.TaskType != nil {
		whereClauses = append(whereClauses, "task_type = ?")
		args = append(args, *filter.TaskType)
	}
	if filter.ParentID != nil {
		whereClauses = append(whereClauses, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}
	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	querySQL := fmt.Sprintf(`
		SELECT %s FROM task_queue
		%s
		ORDER BY priority DESC, created_at ASC
		%s
	`, taskColumns, whereSQL, limitSQL)

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
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

// CountTasksByStatus returns the number of tasks per status for a project
func (s *SQLiteStorage) CountTasksByStatus(ctx context.Context, projectID string) (map[types.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM task_queue
		WHERE project_id = ?
		GROUP BY status
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.TaskStatus]int)
	for rows.Next() {
		var status types.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// taskColumnsFor qualifies the task column list with a table alias for use
// in JOIN queries where bare names would be ambiguous.
func taskColumnsFor(alias string) string {
	cols := strings.Split(taskColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// scanner abstracts *sql.Row and *sql.Rows for scanTask
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row scanner) (*types.Task, error) {
	var task types.Task
	var roadmapID, parentID sql.NullString
	var inputJSON string
	var outputJSON sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&task.ID, &task.ProjectID, &roadmapID, &parentID,
		&task.Title, &task.Description, &task.TaskType, &task.AgentPersona,
		&task.AutonomyLevel, &task.ApprovalRequired, &task.Status, &task.Priority,
		&task.RetryCount, &task.MaxRetries, &task.EstimatedDurationS, &task.ActualDurationS,
		&inputJSON, &outputJSON, &task.ErrorMessage, &task.ApprovalCheckpoint,
		&task.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	if roadmapID.Valid {
		task.RoadmapID = roadmapID.String
	}
	if parentID.Valid {
		task.ParentID = parentID.String
	}
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	if inputJSON != "" {
		var io types.TaskIO
		if err := json.Unmarshal([]byte(inputJSON), &io); err != nil {
			return nil, fmt.Errorf("failed to decode input data: %w", err)
		}
		task.InputData = &io
	}
	if outputJSON.Valid && outputJSON.String != "" {
		var io types.TaskIO
		if err := json.Unmarshal([]byte(outputJSON.String), &io); err != nil {
			return nil, fmt.Errorf("failed to decode output data: %w", err)
		}
		task.OutputData = &io
	}

	return &task, nil
}

func marshalIO(io *types.TaskIO) (string, error) {
	if io == nil {
		return "{}", nil
	}
	data, err := json.Marshal(io)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalIONullable(io *types.TaskIO) (interface{}, error) {
	if io == nil {
		return nil, nil
	}
	data, err := json.Marshal(io)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
