package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	_ "embed"
)

var configOnce sync.Once

var globalConfig *Config

var customConfigPath string // set via --config flag

//go:embed config.sample.yaml
var sampleConfig []byte

const (
	configDirName  = "scansync"
	configFileName = "config.yaml"
	configDirPerm  = 0755
	configFilePerm = 0644
)

// RemoteConfig points at the shared remote document store. An empty URL
// means offline-only: every command except sync still works.
type RemoteConfig struct {
	URL      string `yaml:"url,omitempty" validate:"omitempty,url"`
	Token    string `yaml:"token,omitempty"`
	Identity string `yaml:"identity,omitempty"` // stamped as createdBy on remote writes
}

// VisionConfig configures the external extraction service.
type VisionConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// SyncConfig tunes the sync engine. Zero values fall back to the engine
// defaults.
type SyncConfig struct {
	LabelTimeoutSeconds int `yaml:"label_timeout_seconds,omitempty" validate:"min=0"`
	OrderTimeoutSeconds int `yaml:"order_timeout_seconds,omitempty" validate:"min=0"`
	PacingMillis        int `yaml:"pacing_millis,omitempty" validate:"min=0"`
	ImageMaxKB          int `yaml:"image_max_kb,omitempty" validate:"min=0"`
	AutoSyncMinutes     int `yaml:"auto_sync_minutes,omitempty" validate:"min=0"`
}

// Config is the application configuration, loaded from
// $XDG_CONFIG_HOME/scansync/config.yaml.
type Config struct {
	DBPath     string       `yaml:"db_path,omitempty"`
	DateFormat string       `yaml:"date_format,omitempty"`
	AdminPIN   string       `yaml:"admin_pin,omitempty"`
	Remote     RemoteConfig `yaml:"remote"`
	Vision     VisionConfig `yaml:"vision,omitempty"`
	Sync       SyncConfig   `yaml:"sync,omitempty"`
}

// LabelTimeout returns the per-item upload deadline for labels.
func (c *Config) LabelTimeout() time.Duration {
	return time.Duration(c.Sync.LabelTimeoutSeconds) * time.Second
}

// OrderTimeout returns the per-item upload deadline for orders.
func (c *Config) OrderTimeout() time.Duration {
	return time.Duration(c.Sync.OrderTimeoutSeconds) * time.Second
}

// PacingDelay returns the inter-item delay used during upload.
func (c *Config) PacingDelay() time.Duration {
	return time.Duration(c.Sync.PacingMillis) * time.Millisecond
}

// SetConfigPath overrides the config file location (for the --config flag).
// Must be called before the first GetConfig.
func SetConfigPath(path string) {
	customConfigPath = path
}

// GetConfig returns the process-wide configuration, loading it once. A
// missing file is created from the embedded sample; a broken file falls
// back to defaults with a logged error.
func GetConfig() *Config {
	configOnce.Do(func() {
		cfg, err := load(customConfigPath)
		if err != nil {
			slog.Error("loading config failed, using defaults", "error", err)
			cfg = defaults()
		}
		globalConfig = cfg
	})
	return globalConfig
}

func defaults() *Config {
	return &Config{
		DateFormat: "2006-01-02",
		AdminPIN:   "1234",
		Remote: RemoteConfig{
			Identity: "admin@local",
		},
	}
}

func configFilePath(custom string) (string, error) {
	if custom != "" {
		return custom, nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirName, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", configDirName, configFileName), nil
}

func load(custom string) (*Config, error) {
	path, err := configFilePath(custom)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: materialize the sample so the user has something
		// to edit.
		if mkErr := os.MkdirAll(filepath.Dir(path), configDirPerm); mkErr == nil {
			_ = os.WriteFile(path, sampleConfig, configFilePerm)
		}
		data = sampleConfig
	} else if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML config document, filling defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.DateFormat == "" {
		cfg.DateFormat = "2006-01-02"
	}
	if cfg.Remote.Identity == "" {
		cfg.Remote.Identity = "admin@local"
	}

	return cfg, nil
}
