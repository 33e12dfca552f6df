package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database != ".conductor/conductor.db" {
		t.Errorf("database = %q", cfg.Database)
	}
	if cfg.DefaultAutonomy != "auto" {
		t.Errorf("default autonomy = %q", cfg.DefaultAutonomy)
	}
	if !cfg.AutoApprovalEnabled() {
		t.Error("auto approval should default to enabled")
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
project_id: payments
project_path: /srv/payments
database: /var/lib/conductor.db
default_autonomy: supervised
supervisor:
  check_interval: 10s
  auto_approve_threshold: 90
  max_idle: 1h
  enable_auto_approval: false
agent:
  model: claude-sonnet-4-5-20250929
  max_tokens: 4096
  requests_per_minute: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProjectID != "payments" {
		t.Errorf("project id = %q", cfg.ProjectID)
	}
	if cfg.DefaultAutonomy != "supervised" {
		t.Errorf("default autonomy = %q", cfg.DefaultAutonomy)
	}
	if interval, _ := cfg.CheckInterval(); interval != 10*time.Second {
		t.Errorf("check interval = %v", interval)
	}
	if idle, _ := cfg.MaxIdle(); idle != time.Hour {
		t.Errorf("max idle = %v", idle)
	}
	if cfg.AutoApprovalEnabled() {
		t.Error("auto approval should be disabled")
	}
	if cfg.Agent.RequestsPerMinute != 10 {
		t.Errorf("requests per minute = %d", cfg.Agent.RequestsPerMinute)
	}
}

func TestLoadRejectsBadAutonomy(t *testing.T) {
	path := writeConfig(t, "project_id: p\ndefault_autonomy: yolo\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for invalid autonomy level")
	}
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, "project_id: p\nsupervisor:\n  auto_approve_threshold: 150\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for out-of-range threshold")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "project_id: p\nsupervisor:\n  check_interval: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for unparseable duration")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "project_id: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
