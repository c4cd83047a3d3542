package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Model.Tier != "standard" {
		t.Errorf("default tier = %q", cfg.Model.Tier)
	}
	if cfg.Model.MaxRounds != 0 {
		t.Errorf("default max rounds = %d, want 0 (unbounded)", cfg.Model.MaxRounds)
	}
	if cfg.Dispatch.MaxAttempts != 3 {
		t.Errorf("default max attempts = %d", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Stream.RetainFor != 5*time.Minute {
		t.Errorf("default retain = %v", cfg.Stream.RetainFor)
	}
}

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dispatch.TickInterval != 30*time.Second {
		t.Errorf("tick = %v", cfg.Dispatch.TickInterval)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
		"model": {"name": "claude-sonnet-4-5", "maxTokens": 8192},
		"events": {"kafkaBrokers": ["localhost:9092"]}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Name != "claude-sonnet-4-5" || cfg.Model.MaxTokens != 8192 {
		t.Errorf("model = %+v", cfg.Model)
	}
	// Unset fields keep defaults.
	if cfg.Model.Tier != "standard" {
		t.Errorf("tier = %q", cfg.Model.Tier)
	}
	// A broker list without a topic gets the default topic.
	if cfg.Events.KafkaTopic != "majordomo.events" {
		t.Errorf("kafka topic = %q", cfg.Events.KafkaTopic)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MODEL", "gpt-4o")
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "5")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.Name != "gpt-4o" {
		t.Errorf("model = %q, want env override", cfg.Model.Name)
	}
	if cfg.Dispatch.MaxAttempts != 5 {
		t.Errorf("max attempts = %d, want 5", cfg.Dispatch.MaxAttempts)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := Default()
	cfg.Model.Name = "llama-3.3-70b-versatile"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Model.Name != "llama-3.3-70b-versatile" {
		t.Errorf("name = %q", loaded.Model.Name)
	}
}
