package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCLIConfig_Defaults(t *testing.T) {
	t.Setenv("PULSE_UPDATE_INTERVAL", "")
	t.Setenv("PULSE_INTERVAL", "")
	os.Unsetenv("PULSE_UPDATE_INTERVAL")
	os.Unsetenv("PULSE_INTERVAL")

	cfg, err := loadCLIConfig(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("loadCLIConfig: %v", err)
	}
	if cfg.UpdateInterval != 2*time.Second {
		t.Fatalf("update-interval = %s, want 2s", cfg.UpdateInterval)
	}
	if cfg.Interval != 1 {
		t.Fatalf("interval = %d, want 1", cfg.Interval)
	}
	if cfg.SocketPath == "" {
		t.Fatal("expected default socket path")
	}
}

func TestLoadCLIConfig_SharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := "update-interval: 500ms\ninterval: 15\nsocket-path: /tmp/p.sock\ntcp-port: 4000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadCLIConfig(path)
	if err != nil {
		t.Fatalf("loadCLIConfig: %v", err)
	}
	if cfg.UpdateInterval != 500*time.Millisecond || cfg.Interval != 15 || cfg.SocketPath != "/tmp/p.sock" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadCLIConfig_RejectsZeroUpdateInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("update-interval: 0s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadCLIConfig(path); err == nil {
		t.Fatal("expected error for zero update-interval")
	}
}
