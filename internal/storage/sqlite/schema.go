package sqlite

const schema = `
-- Task queue table
CREATE TABLE IF NOT EXISTS task_queue (
    id TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    roadmap_id TEXT,
    parent_id TEXT,
    title TEXT NOT NULL CHECK(length(title) <= 500),
    description TEXT NOT NULL DEFAULT '',
    task_type TEXT NOT NULL DEFAULT 'code-generation',
    agent_persona TEXT NOT NULL DEFAULT 'developer',
    autonomy_level TEXT NOT NULL DEFAULT 'supervised',
    approval_required INTEGER NOT NULL DEFAULT 1,
    status TEXT NOT NULL DEFAULT 'pending',
    priority INTEGER NOT NULL DEFAULT 50,
    retry_count INTEGER NOT NULL DEFAULT 0,
    max_retries INTEGER NOT NULL DEFAULT 3,
    estimated_duration_s INTEGER NOT NULL DEFAULT 0,
    actual_duration_s INTEGER NOT NULL DEFAULT 0,
    input_data TEXT NOT NULL DEFAULT '{}',
    output_data TEXT,
    error_message TEXT NOT NULL DEFAULT '',
    approval_checkpoint TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    started_at DATETIME,
    completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_task_queue_project ON task_queue(project_id);
CREATE INDEX IF NOT EXISTS idx_task_queue_status ON task_queue(status);
CREATE INDEX IF NOT EXISTS idx_task_queue_priority ON task_queue(priority);
CREATE INDEX IF NOT EXISTS idx_task_queue_created_at ON task_queue(created_at);
CREATE INDEX IF NOT EXISTS idx_task_queue_parent ON task_queue(parent_id);

-- Approval gates table
CREATE TABLE IF NOT EXISTS approval_gates (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    gate_type TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    review_data TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'pending',
    approver TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    resolved_at DATETIME,
    FOREIGN KEY (task_id) REFERENCES task_queue(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_gates_task ON approval_gates(task_id);
CREATE INDEX IF NOT EXISTS idx_gates_status ON approval_gates(status);

-- At most one pending gate per task
CREATE UNIQUE INDEX IF NOT EXISTS idx_gates_pending_task
    ON approval_gates(task_id) WHERE status = 'pending';

-- Dependencies table ("blocks" edges)
CREATE TABLE IF NOT EXISTS task_dependencies (
    task_id TEXT NOT NULL,
    depends_on_id TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (task_id, depends_on_id),
    FOREIGN KEY (task_id) REFERENCES task_queue(id) ON DELETE CASCADE,
    FOREIGN KEY (depends_on_id) REFERENCES task_queue(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_dependencies_task ON task_dependencies(task_id);
CREATE INDEX IF NOT EXISTS idx_dependencies_depends_on ON task_dependencies(depends_on_id);

-- Execution metrics (one row per attempt)
CREATE TABLE IF NOT EXISTS task_execution_metrics (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL,
    attempt INTEGER NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    success INTEGER,
    error_sample TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (task_id) REFERENCES task_queue(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_metrics_task ON task_execution_metrics(task_id);

-- Checkpoint snapshots (latest state per task)
CREATE TABLE IF NOT EXISTS task_checkpoints (
    task_id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (task_id) REFERENCES task_queue(id) ON DELETE CASCADE
);

-- Error pattern statistics (mirrors the in-memory classifier table)
CREATE TABLE IF NOT EXISTS error_patterns (
    id TEXT PRIMARY KEY,
    occurrences INTEGER NOT NULL DEFAULT 0,
    success_rate REAL NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- One row per observed retry outcome
CREATE TABLE IF NOT EXISTS error_observations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL,
    pattern_id TEXT NOT NULL DEFAULT '',
    error_text TEXT NOT NULL,
    success INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_observations_task ON error_observations(task_id);
CREATE INDEX IF NOT EXISTS idx_observations_pattern ON error_observations(pattern_id);
`
