package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataDirEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LORE_HOME", dir)

	got, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() failed: %v", err)
	}
	if got != dir {
		t.Errorf("DataDir() = %q, want %q", got, dir)
	}
}

func TestDataDirDefault(t *testing.T) {
	t.Setenv("LORE_HOME", "")

	got, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if got != filepath.Join(home, ".lore") {
		t.Errorf("DataDir() = %q, want ~/.lore", got)
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("LORE_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AutoLink.Threshold != 0.5 {
		t.Errorf("default threshold = %v, want 0.5", cfg.AutoLink.Threshold)
	}
	if cfg.AutoLink.WindowMinutes != 30 {
		t.Errorf("default window = %d, want 30", cfg.AutoLink.WindowMinutes)
	}
	if cfg.Finalisation.InactivityMinutes != 30 {
		t.Errorf("default inactivity = %d, want 30", cfg.Finalisation.InactivityMinutes)
	}
	if cfg.Daemon.ScanIntervalSeconds != 60 {
		t.Errorf("default scan interval = %d, want 60", cfg.Daemon.ScanIntervalSeconds)
	}
	if cfg.Daemon.DebounceMs != 300 {
		t.Errorf("default debounce = %d, want 300", cfg.Daemon.DebounceMs)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LORE_HOME", dir)

	content := `
watchers:
  - claude-code
  - aider
auto_link:
  threshold: 0.7
  window_minutes: 15
daemon:
  debounce_ms: 500
machine_name: workstation
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Watchers) != 2 || cfg.Watchers[0] != "claude-code" {
		t.Errorf("Watchers = %v", cfg.Watchers)
	}
	if cfg.AutoLink.Threshold != 0.7 {
		t.Errorf("threshold = %v, want 0.7", cfg.AutoLink.Threshold)
	}
	if cfg.AutoLink.WindowMinutes != 15 {
		t.Errorf("window = %d, want 15", cfg.AutoLink.WindowMinutes)
	}
	if cfg.Daemon.DebounceMs != 500 {
		t.Errorf("debounce = %d, want 500", cfg.Daemon.DebounceMs)
	}
	// Options absent from the file keep their defaults.
	if cfg.Daemon.ScanIntervalSeconds != 60 {
		t.Errorf("scan interval = %d, want default 60", cfg.Daemon.ScanIntervalSeconds)
	}
	if cfg.MachineName != "workstation" {
		t.Errorf("machine name = %q", cfg.MachineName)
	}
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LORE_HOME", dir)

	content := "auto_link:\n  threshold: 1.5\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() should reject threshold outside [0,1]")
	}
}

func TestSaveRoundtrip(t *testing.T) {
	t.Setenv("LORE_HOME", t.TempDir())

	cfg := Default()
	cfg.Watchers = []string{"codex"}
	cfg.AutoLink.Threshold = 0.6

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(loaded.Watchers) != 1 || loaded.Watchers[0] != "codex" {
		t.Errorf("Watchers = %v", loaded.Watchers)
	}
	if loaded.AutoLink.Threshold != 0.6 {
		t.Errorf("threshold = %v, want 0.6", loaded.AutoLink.Threshold)
	}
}

func TestDBPathOverride(t *testing.T) {
	t.Setenv("LORE_HOME", t.TempDir())

	cfg := Default()
	cfg.Storage.DatabasePath = "/custom/lore.db"

	got, err := cfg.DBPath()
	if err != nil {
		t.Fatalf("DBPath() failed: %v", err)
	}
	if got != "/custom/lore.db" {
		t.Errorf("DBPath() = %q", got)
	}
}
