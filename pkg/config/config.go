// Package config handles loading and saving ember configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/ember/config.yaml
//   - Data:    ~/.local/share/ember/ (chunk cache, analysis, imports)
//   - State:   ~/.local/state/ember/ (recall progress)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/ember/pkg/model"
	"github.com/vanderheijden86/ember/pkg/recall"
)

const appName = "ember"

// Progress backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// UIConfig holds terminal UI preferences.
type UIConfig struct {
	FPS         int     `yaml:"fps,omitempty"`
	DefaultView string  `yaml:"default_view,omitempty"` // graph, recall, memories
	FrustumSize float64 `yaml:"frustum_size,omitempty"`
}

// ExtractionConfig tunes the chunk extraction client. The API key is never
// stored here; it comes from the environment.
type ExtractionConfig struct {
	BaseURL           string        `yaml:"base_url,omitempty"`
	Model             string        `yaml:"model,omitempty"`
	RequestsPerMinute int           `yaml:"requests_per_minute,omitempty"`
	MaxRetries        int           `yaml:"max_retries,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
}

// ProgressConfig selects where recall progress is kept.
type ProgressConfig struct {
	Backend string `yaml:"backend,omitempty"` // file or sqlite
}

// Config is the top-level configuration for ember.
type Config struct {
	DataDir    string           `yaml:"data_dir,omitempty"`
	LastChat   string           `yaml:"last_chat,omitempty"`
	UI         UIConfig         `yaml:"ui,omitempty"`
	Recall     recall.Config    `yaml:"recall,omitempty"`
	Extraction ExtractionConfig `yaml:"extraction,omitempty"`
	Progress   ProgressConfig   `yaml:"progress,omitempty"`
}

// DefaultConfig returns a Config with the standard settings.
func DefaultConfig() Config {
	return Config{
		DataDir: DataDir(),
		UI: UIConfig{
			FPS:         30,
			DefaultView: "graph",
			FrustumSize: 1000,
		},
		Recall: recall.DefaultConfig(),
		Extraction: ExtractionConfig{
			BaseURL:           "https://openrouter.ai/api/v1",
			RequestsPerMinute: 30,
			MaxRetries:        3,
			Timeout:           90 * time.Second,
		},
		Progress: ProgressConfig{Backend: BackendFile},
	}
}

func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

// ConfigDir returns the XDG config directory for ember.
func ConfigDir() string { return xdgDir("XDG_CONFIG_HOME", ".config") }

// DataDir returns the XDG data directory for ember.
func DataDir() string { return xdgDir("XDG_DATA_HOME", ".local", "share") }

// StateDir returns the XDG state directory for ember.
func StateDir() string { return xdgDir("XDG_STATE_HOME", ".local", "state") }

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. Missing keys keep their
// defaults; a missing file is the default config.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c Config) Validate() error {
	if c.UI.FPS < 0 || c.UI.FPS > 240 {
		return fmt.Errorf("ui.fps must be between 0 and 240, got %d", c.UI.FPS)
	}
	if c.UI.DefaultView != "" {
		if _, err := model.ParseViewType(c.UI.DefaultView); err != nil {
			return fmt.Errorf("ui.default_view: %w", err)
		}
	}
	switch c.Progress.Backend {
	case "", BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("progress.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Progress.Backend)
	}
	if c.Recall.MinRounds < 0 || c.Recall.FetchBatch < 0 || c.Recall.FetchEvery < 0 {
		return fmt.Errorf("recall settings must not be negative")
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// StatePath is where recall progress lives for the configured backend: a
// directory of JSON files, or a SQLite database file.
func (c Config) StatePath() string {
	dir := StateDir()
	if dir == "" {
		dir = filepath.Join(c.DataDir, "state")
	}
	if c.Progress.Backend == BackendSQLite {
		return filepath.Join(dir, "state.db")
	}
	return dir
}

// FrameInterval is the UI tick period.
func (c Config) FrameInterval() time.Duration {
	fps := c.UI.FPS
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
