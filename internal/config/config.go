package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration loaded from
// $LORE_HOME/config.yaml.
type Config struct {
	// Watchers is the ordered set of adapter names to enable. Empty means
	// every available adapter.
	Watchers []string `yaml:"watchers"`

	AutoLink struct {
		Threshold     float64 `yaml:"threshold"`
		WindowMinutes int     `yaml:"window_minutes"`
	} `yaml:"auto_link"`

	Finalisation struct {
		InactivityMinutes int `yaml:"inactivity_minutes"`
	} `yaml:"finalisation"`

	Daemon struct {
		ScanIntervalSeconds int `yaml:"scan_interval_seconds"`
		DebounceMs          int `yaml:"debounce_ms"`
	} `yaml:"daemon"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
	} `yaml:"storage"`

	MachineName string `yaml:"machine_name"`
}

// Default returns a configuration with every option at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.AutoLink.Threshold = 0.5
	cfg.AutoLink.WindowMinutes = 30
	cfg.Finalisation.InactivityMinutes = 30
	cfg.Daemon.ScanIntervalSeconds = 60
	cfg.Daemon.DebounceMs = 300
	if host, err := os.Hostname(); err == nil {
		cfg.MachineName = host
	}
	return cfg
}

// DataDir returns the lore data root with configuration hierarchy:
// LORE_HOME environment variable, then ~/.lore.
func DataDir() (string, error) {
	if envDir := os.Getenv("LORE_HOME"); envDir != "" {
		return expandHome(envDir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, ".lore"), nil
}

// EnsureDataDir creates the data root if it does not exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "failed to create data directory: %s", dir)
	}
	return dir, nil
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DBPath returns the database path, honouring storage.database_path.
func (c *Config) DBPath() (string, error) {
	if c.Storage.DatabasePath != "" {
		return expandHome(c.Storage.DatabasePath)
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "lore.db"), nil
}

// SocketPath returns the daemon IPC socket path.
func SocketPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.sock"), nil
}

// PIDPath returns the daemon PID file path.
func PIDPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

// LogPath returns the daemon log file path.
func LogPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.log"), nil
}

// Window returns the auto-link time window as a duration.
func (c *Config) Window() time.Duration {
	return time.Duration(c.AutoLink.WindowMinutes) * time.Minute
}

// InactivityThreshold returns the session finalisation threshold.
func (c *Config) InactivityThreshold() time.Duration {
	return time.Duration(c.Finalisation.InactivityMinutes) * time.Minute
}

// ScanInterval returns the daemon periodic scan interval.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Daemon.ScanIntervalSeconds) * time.Second
}

// Debounce returns the watcher debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Daemon.DebounceMs) * time.Millisecond
}

// Load reads the config file, filling in defaults for absent options. A
// missing file is not an error and yields the defaults.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read config file: %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, eris.Wrapf(err, "failed to parse config file: %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if _, err := EnsureDataDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "failed to marshal config to YAML")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "failed to write config file: %s", path)
	}

	return nil
}

// Validate checks the configuration settings.
func (c *Config) Validate() error {
	if c.AutoLink.Threshold < 0 || c.AutoLink.Threshold > 1 {
		return eris.Errorf("invalid auto_link.threshold: %v (must be in [0,1])", c.AutoLink.Threshold)
	}
	if c.AutoLink.WindowMinutes <= 0 {
		return eris.Errorf("invalid auto_link.window_minutes: %d (must be positive)", c.AutoLink.WindowMinutes)
	}
	if c.Finalisation.InactivityMinutes <= 0 {
		return eris.Errorf("invalid finalisation.inactivity_minutes: %d (must be positive)", c.Finalisation.InactivityMinutes)
	}
	if c.Daemon.ScanIntervalSeconds <= 0 {
		return eris.Errorf("invalid daemon.scan_interval_seconds: %d (must be positive)", c.Daemon.ScanIntervalSeconds)
	}
	if c.Daemon.DebounceMs < 0 {
		return eris.Errorf("invalid daemon.debounce_ms: %d (must not be negative)", c.Daemon.DebounceMs)
	}
	return nil
}

// expandHome expands ~ to the user's home directory in a path.
func expandHome(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", eris.Wrap(err, "failed to get user home directory")
	}

	if len(path) == 1 {
		return home, nil
	}

	if path[1] == '/' || path[1] == filepath.Separator {
		return filepath.Join(home, path[2:]), nil
	}

	return path, nil
}
