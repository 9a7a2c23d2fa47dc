// Package config loads and persists stagehand's own settings plus the
// optional answers file that pre-seeds wizard stages.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basket/stagehand/internal/otel"
	"github.com/basket/stagehand/internal/progress"
)

// IndicationConfig overrides the progress indication thresholds.
// Zero values keep the defaults (100ms block, 1s minimum show).
type IndicationConfig struct {
	MaxBlockMS int `yaml:"max_block_ms"`
	MinShowMS  int `yaml:"min_show_ms"`
}

// Config is stagehand's own configuration, not the per-stage payloads (those
// belong to the stages and are out of scope here).
type Config struct {
	LogLevel string `yaml:"log_level"`

	// ASCII forces basic rendering regardless of terminal detection.
	ASCII bool `yaml:"ascii"`

	// DefaultMirror pre-fills the mirror stage's URL field.
	DefaultMirror string `yaml:"default_mirror"`

	Indication IndicationConfig `yaml:"indication"`
	Telemetry  otel.Config      `yaml:"telemetry"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		LogLevel:      "info",
		DefaultMirror: "http://archive.ubuntu.com/ubuntu",
	}
}

// Load reads the config file at path. A missing file is not an error: the
// defaults come back.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories as needed.
func (c Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Progress converts the millisecond overrides into progress thresholds.
func (c Config) Progress() progress.Config {
	return progress.Config{
		MaxBlockTime: time.Duration(c.Indication.MaxBlockMS) * time.Millisecond,
		MinShowTime:  time.Duration(c.Indication.MinShowMS) * time.Millisecond,
	}
}
