// Package supervisor runs the autonomous outer loop: it keeps the queue
// engine running while work remains, sweeps open approval gates through
// the quality resolver, and watchdogs stuck tasks.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/conductorhq/conductor/internal/events"
	"github.com/conductorhq/conductor/internal/queue"
	"github.com/conductorhq/conductor/internal/resolver"
	"github.com/conductorhq/conductor/internal/storage"
	"github.com/conductorhq/conductor/internal/types"
)

const maxRecentErrors = 10

// Config holds supervisor configuration
type Config struct {
	ProjectID   string
	ProjectPath string
	// DefaultAutonomy is applied to tasks enqueued through the supervisor
	DefaultAutonomy types.AutonomyLevel
	// CheckInterval is the main loop period. Default: 5s
	CheckInterval time.Duration
	// AutoApproveThreshold is the minimum assessment score (0-100) for
	// auto-approval. Default: 80
	AutoApproveThreshold int
	// MaxIdle stops the supervisor after this long with no activity.
	// Default: 30m
	MaxIdle time.Duration
	// EnableAutoApproval turns the gate sweep on
	EnableAutoApproval bool
	// WatchdogInterval is the stuck-task check period. Default: 60s
	WatchdogInterval time.Duration
	// MonitorInterval is the progress snapshot period. Default: 30s
	MonitorInterval time.Duration
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig(projectID string) *Config {
	return &Config{
		ProjectID:            projectID,
		DefaultAutonomy:      types.AutonomyAuto,
		CheckInterval:        5 * time.Second,
		AutoApproveThreshold: 80,
		MaxIdle:              30 * time.Minute,
		EnableAutoApproval:   true,
		WatchdogInterval:     60 * time.Second,
		MonitorInterval:      30 * time.Second,
	}
}

// Supervisor is the autonomous outer loop. At most one live supervisor
// exists per project.
type Supervisor struct {
	cfg      Config
	queue    *queue.Engine
	resolver *resolver.Resolver
	store    storage.Storage
	bus      *events.Bus

	mu        sync.Mutex
	running   bool
	paused    bool
	stats     types.SupervisorStats
	notified  map[string]bool
	startedAt time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a supervisor over the given queue engine
func New(cfg Config, q *queue.Engine, res *resolver.Resolver, store storage.Storage) *Supervisor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Second
	}
	if cfg.AutoApproveThreshold <= 0 {
		cfg.AutoApproveThreshold = 80
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 30 * time.Minute
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = 60 * time.Second
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 30 * time.Second
	}
	return &Supervisor{
		cfg:      cfg,
		queue:    q,
		resolver: res,
		store:    store,
		bus:      events.NewBus(),
		notified: make(map[string]bool),
	}
}

// Subscribe returns a channel of supervisor events and a cancel function
func (s *Supervisor) Subscribe() (<-chan events.Event, func()) {
	return s.bus.Subscribe()
}

// Start launches the main, watchdog, and monitor loops
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor is already running")
	}
	s.running = true
	s.paused = false
	s.startedAt = time.Now()
	s.stats = types.SupervisorStats{LastActivityAt: s.startedAt}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.bus.Emit(events.TypeAutonomousStarted, "", map[string]interface{}{
		"project_id": s.cfg.ProjectID,
	})

	go s.consumeQueueEvents()
	go s.watchdogLoop(ctx)
	go s.monitorLoop(ctx)
	go s.mainLoop(ctx)
	return nil
}

// Pause suspends the supervisor and the queue underneath it
func (s *Supervisor) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.queue.Pause()
	s.bus.Emit(events.TypeAutonomousPaused, "", nil)
}

// Resume restarts a paused supervisor
func (s *Supervisor) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.queue.Resume()
	s.bus.Emit(events.TypeAutonomousResumed, "", nil)
}

// Stop tears the loops down and stops the queue
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	if err := s.queue.Stop(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to stop queue: %v\n", err)
	}

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.bus.Emit(events.TypeAutonomousStopped, "", nil)
	return nil
}

// IsRunning reports whether the supervisor loops are active
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns a snapshot of the supervisor counters
func (s *Supervisor) Stats() types.SupervisorStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.stats
	snapshot.RecentErrors = append([]string(nil), s.stats.RecentErrors...)
	snapshot.TotalRunTimeMs = time.Since(s.startedAt).Milliseconds()
	return snapshot
}

// consumeQueueEvents folds queue events into the stats counters
func (s *Supervisor) consumeQueueEvents() {
	sub, cancel := s.queue.Subscribe()
	defer cancel()

	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.mu.Lock()
			s.stats.LastActivityAt = ev.Timestamp
			switch ev.Type {
			case events.TypeTaskCompleted:
				s.stats.TasksCompleted++
			case events.TypeTaskFailed:
				s.stats.TasksFailed++
			}
			s.mu.Unlock()
		}
	}
}

func (s *Supervisor) mainLoop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		select {
		case <-s.stopCh:
		default:
			// Idle-timeout exits take the helper loops down too
			close(s.stopCh)
		}
		close(s.doneCh)
		s.mu.Unlock()
	}()

	interval := s.cfg.CheckInterval
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		s.mu.Lock()
		paused := s.paused
		s.mu.Unlock()
		if paused {
			continue
		}

		if err := s.tick(ctx); err != nil {
			s.recordError(err)
			s.bus.Emit(events.TypeAutonomousError, "", map[string]interface{}{
				"error": err.Error(),
			})
			// Back off after a failed tick, then return to normal pace
			interval = 2 * s.cfg.CheckInterval
			continue
		}
		interval = s.cfg.CheckInterval

		if s.idleExpired() {
			s.bus.Emit(events.TypeAutonomousIdleTimeout, "", map[string]interface{}{
				"idle_for": time.Since(s.lastActivity()).String(),
			})
			return
		}
	}
}

// tick is one pass of the main loop: sweep gates, then make sure the
// queue is running whenever dispatchable work exists.
func (s *Supervisor) tick(ctx context.Context) error {
	if s.cfg.EnableAutoApproval {
		if err := s.sweepGates(ctx); err != nil {
			return fmt.Errorf("gate sweep failed: %w", err)
		}
	}

	if s.queue.IsRunning() {
		return nil
	}

	counts, err := s.store.CountTasksByStatus(ctx, s.cfg.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}
	if counts[types.StatusPending]+counts[types.StatusQueued] > 0 {
		s.touch()
		if err := s.queue.Start(ctx); err != nil {
			return fmt.Errorf("failed to start queue: %w", err)
		}
	}
	return nil
}

// sweepGates assesses every pending gate and auto-approves the ones that
// clear both the resolver's own decision and the configured threshold.
func (s *Supervisor) sweepGates(ctx context.Context) error {
	gates, err := s.queue.ListGates(ctx)
	if err != nil {
		return err
	}

	for _, gate := range gates {
		task, err := s.store.GetTask(ctx, gate.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			continue
		}

		output := task.OutputData
		if output == nil && gate.ReviewData != "" {
			output = types.ResultOutput(gate.ReviewData)
		}

		assessment := s.resolver.Assess(task, output)

		if assessment.CanAutoApprove && assessment.Score >= s.cfg.AutoApproveThreshold {
			if _, err := s.queue.ApproveGate(ctx, gate.ID, "supervisor", "auto-approved"); err != nil {
				return err
			}
			s.mu.Lock()
			s.stats.TasksAutoApproved++
			delete(s.notified, gate.ID)
			s.mu.Unlock()
			s.touch()
			s.bus.Emit(events.TypeAutoApproved, gate.TaskID, map[string]interface{}{
				"gate_id": gate.ID,
				"score":   assessment.Score,
				"risk":    string(assessment.Risk),
			})
			continue
		}

		s.mu.Lock()
		seen := s.notified[gate.ID]
		if !seen {
			s.notified[gate.ID] = true
			s.stats.TasksManualApproval++
		}
		s.mu.Unlock()
		if !seen {
			s.bus.Emit(events.TypeManualApprovalNeeded, gate.TaskID, map[string]interface{}{
				"gate_id": gate.ID,
				"score":   assessment.Score,
				"risk":    string(assessment.Risk),
				"reasons": assessment.Reasons,
			})
		}
	}
	return nil
}

// monitorLoop emits a periodic progress snapshot
func (s *Supervisor) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.Stats()
			s.bus.Emit(events.TypeAutonomousProgress, "", map[string]interface{}{
				"completed":       stats.TasksCompleted,
				"failed":          stats.TasksFailed,
				"auto_approved":   stats.TasksAutoApproved,
				"manual_approval": stats.TasksManualApproval,
				"run_time_ms":     stats.TotalRunTimeMs,
			})
		}
	}
}

func (s *Supervisor) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.RecentErrors = append(s.stats.RecentErrors, err.Error())
	if len(s.stats.RecentErrors) > maxRecentErrors {
		s.stats.RecentErrors = s.stats.RecentErrors[len(s.stats.RecentErrors)-maxRecentErrors:]
	}
}

func (s *Supervisor) touch() {
	s.mu.Lock()
	s.stats.LastActivityAt = time.Now()
	s.mu.Unlock()
}

func (s *Supervisor) lastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.LastActivityAt
}

func (s *Supervisor) idleExpired() bool {
	if s.queue.IsRunning() {
		return false
	}
	return time.Since(s.lastActivity()) > s.cfg.MaxIdle
}
