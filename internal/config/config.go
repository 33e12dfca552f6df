// Package config loads the project configuration file used by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conductorhq/conductor/internal/types"
)

// DefaultPath is where the CLI looks for configuration
const DefaultPath = ".conductor/config.yaml"

// Config represents the project configuration loaded from YAML
type Config struct {
	// ProjectID names the project all tasks are scoped to
	ProjectID string `yaml:"project_id"`

	// ProjectPath is the working directory handed to the agent.
	// Default: current directory
	ProjectPath string `yaml:"project_path,omitempty"`

	// Database is the SQLite file path. Default: .conductor/conductor.db
	Database string `yaml:"database,omitempty"`

	// DefaultAutonomy applies to tasks enqueued without an explicit level.
	// One of: auto, supervised, approval_gates. Default: auto
	DefaultAutonomy string `yaml:"default_autonomy,omitempty"`

	Supervisor SupervisorConfig `yaml:"supervisor,omitempty"`
	Agent      AgentConfig      `yaml:"agent,omitempty"`
}

// SupervisorConfig configures the autonomous loop
type SupervisorConfig struct {
	// CheckInterval between main loop passes, e.g. "5s". Default: 5s
	CheckInterval string `yaml:"check_interval,omitempty"`

	// AutoApproveThreshold is the minimum score (0-100) for auto-approval.
	// Default: 80
	AutoApproveThreshold int `yaml:"auto_approve_threshold,omitempty"`

	// MaxIdle stops the supervisor after this long without activity,
	// e.g. "30m". Default: 30m
	MaxIdle string `yaml:"max_idle,omitempty"`

	// EnableAutoApproval turns the gate sweep on. Default: true
	EnableAutoApproval *bool `yaml:"enable_auto_approval,omitempty"`
}

// AgentConfig configures the LLM driver
type AgentConfig struct {
	// Model overrides the default Anthropic model
	Model string `yaml:"model,omitempty"`

	// MaxTokens per response. Default: 8192
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// RequestsPerMinute paces API calls. Default: 30
	RequestsPerMinute int `yaml:"requests_per_minute,omitempty"`
}

// Load reads configuration from the given path. A missing file yields the
// defaults rather than an error; a malformed file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		ProjectID:       filepath.Base(cwd),
		ProjectPath:     cwd,
		Database:        ".conductor/conductor.db",
		DefaultAutonomy: string(types.AutonomyAuto),
	}
}

// Validate checks field values after loading
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if c.DefaultAutonomy != "" && !types.AutonomyLevel(c.DefaultAutonomy).IsValid() {
		return fmt.Errorf("invalid default_autonomy: %q", c.DefaultAutonomy)
	}
	if c.Supervisor.AutoApproveThreshold < 0 || c.Supervisor.AutoApproveThreshold > 100 {
		return fmt.Errorf("auto_approve_threshold must be 0-100 (got %d)", c.Supervisor.AutoApproveThreshold)
	}
	if _, err := c.CheckInterval(); err != nil {
		return err
	}
	if _, err := c.MaxIdle(); err != nil {
		return err
	}
	return nil
}

// CheckInterval parses the supervisor check interval
func (c *Config) CheckInterval() (time.Duration, error) {
	return parseDuration(c.Supervisor.CheckInterval, 5*time.Second, "check_interval")
}

// MaxIdle parses the supervisor idle limit
func (c *Config) MaxIdle() (time.Duration, error) {
	return parseDuration(c.Supervisor.MaxIdle, 30*time.Minute, "max_idle")
}

// AutoApprovalEnabled reports whether the gate sweep should run
func (c *Config) AutoApprovalEnabled() bool {
	if c.Supervisor.EnableAutoApproval == nil {
		return true
	}
	return *c.Supervisor.EnableAutoApproval
}

func parseDuration(raw string, fallback time.Duration, field string) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive (got %s)", field, raw)
	}
	return d, nil
}
