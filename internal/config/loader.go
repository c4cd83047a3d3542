package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".majordomo"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "MAJORDOMO"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("MAJORDOMO_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Default returns a config populated with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ConfigDir)
	return &Config{
		Paths: PathsConfig{
			DataDir:   dataDir,
			Workspace: filepath.Join(dataDir, "workspace"),
		},
		Model: ModelConfig{
			Tier:        "standard",
			MaxTokens:   4096,
			Temperature: 0.7,
			MaxRounds:   0,
		},
		Dispatch: DispatchConfig{
			Enabled:       true,
			TickInterval:  30 * time.Second,
			MaxAttempts:   3,
			MaxConcurrent: 8,
			DefaultAgent:  "assistant",
		},
		Stream: StreamConfig{
			RetainFor: 5 * time.Minute,
		},
		Tools: ToolsConfig{
			ExecTimeout:        60 * time.Second,
			FetchTimeout:       30 * time.Second,
			SpawnMaxDepth:      1,
			SpawnMaxConcurrent: 8,
		},
	}
}

// Load reads the config file (if present), then applies environment
// overrides. A missing config file is not an error; defaults apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Model.MaxRounds < 0 {
		return fmt.Errorf("model.maxRounds must be >= 0")
	}
	if c.Dispatch.MaxAttempts < 1 {
		c.Dispatch.MaxAttempts = 1
	}
	if c.Dispatch.TickInterval <= 0 {
		c.Dispatch.TickInterval = 30 * time.Second
	}
	if c.Stream.RetainFor <= 0 {
		c.Stream.RetainFor = 5 * time.Minute
	}
	if len(c.Events.KafkaBrokers) > 0 && strings.TrimSpace(c.Events.KafkaTopic) == "" {
		c.Events.KafkaTopic = "majordomo.events"
	}
	return nil
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
