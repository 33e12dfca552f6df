package storage

import (
	"context"

	"github.com/conductorhq/conductor/internal/storage/sqlite"
	"github.com/conductorhq/conductor/internal/types"
)

// Storage defines the interface for the embedded task store
type Storage interface {
	// Tasks
	CreateTask(ctx context.Context, task *types.Task) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	UpdateTask(ctx context.Context, id string, updates map[string]interface{}) error
	ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error)
	CountTasksByStatus(ctx context.Context, projectID string) (map[types.TaskStatus]int, error)

	// Approval gates
	CreateGate(ctx context.Context, gate *types.ApprovalGate) error
	GetGate(ctx context.Context, id string) (*types.ApprovalGate, error)
	GetPendingGate(ctx context.Context, taskID string) (*types.ApprovalGate, error)
	ListPendingGates(ctx context.Context, projectID string) ([]*types.ApprovalGate, error)
	ResolveGate(ctx context.Context, id string, status types.GateStatus, approver, notes string) (bool, error)

	// Dependencies ("blocks" edges; cycle-checked at insert)
	AddDependency(ctx context.Context, dep *types.TaskDependency) error
	RemoveDependency(ctx context.Context, taskID, dependsOnID string) error
	GetDependencies(ctx context.Context, taskID string) ([]*types.Task, error)
	GetDependents(ctx context.Context, taskID string) ([]*types.Task, error)

	// Execution metrics and checkpoints
	RecordExecutionMetric(ctx context.Context, metric *types.ExecutionMetric) error
	GetExecutionMetrics(ctx context.Context, taskID string) ([]*types.ExecutionMetric, error)
	SaveCheckpoint(ctx context.Context, taskID string, data interface{}) error
	GetCheckpoint(ctx context.Context, taskID string) (string, error)

	// Error pattern learning
	SaveErrorPattern(ctx context.Context, patternID string, occurrences int, successRate float64) error
	RecordErrorObservation(ctx context.Context, obs *types.ErrorObservation) error
	GetErrorObservations(ctx context.Context, taskID string) ([]*types.ErrorObservation, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Default: ".conductor/conductor.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".conductor/conductor.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".conductor/conductor.db"
	}
	return sqlite.New(cfg.Path)
}
