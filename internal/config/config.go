// Package config loads tickcore settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tickcore/internal/host"
	"github.com/roach88/tickcore/internal/loop"
)

// Config is the top-level configuration file.
type Config struct {
	Loop LoopConfig `yaml:"loop"`
	Host HostConfig `yaml:"host"`
	Log  LogConfig  `yaml:"log"`
}

// LoopConfig sets frame pacing for the reference loop.
type LoopConfig struct {
	FrameInterval time.Duration `yaml:"frame_interval"`
	FixedStep     time.Duration `yaml:"fixed_step"`
	MaxFixedSteps int           `yaml:"max_fixed_steps"`
	Frames        uint64        `yaml:"frames"`
}

// HostConfig sets how the host is created and recreated.
type HostConfig struct {
	Name           string `yaml:"name"`
	RecreatePolicy string `yaml:"recreate_policy"`
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Loop: LoopConfig{
			FrameInterval: loop.DefaultFrameInterval,
			FixedStep:     loop.DefaultFixedStep,
			MaxFixedSteps: loop.DefaultMaxFixedSteps,
		},
		Host: HostConfig{
			Name:           host.DefaultName,
			RecreatePolicy: host.Recreate.String(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config from path, expanding ${VAR} references from the
// environment. Keys missing from the file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config bytes. ${VAR} references are
// expanded inside scalar values after parsing, so an expanded value is
// always read as a single scalar whatever characters it contains. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}

	cfg := Default()
	if doc.Kind != 0 {
		expandNode(&doc)
		expanded, err := yaml.Marshal(&doc)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse: %w", err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(expanded))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("config: parse: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// expandNode expands environment references in every value scalar under n.
// Mapping keys are left alone.
func expandNode(n *yaml.Node) {
	switch n.Kind {
	case yaml.ScalarNode:
		expandScalar(n)
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			expandNode(n.Content[i])
		}
	default:
		for _, c := range n.Content {
			expandNode(c)
		}
	}
}

func expandScalar(n *yaml.Node) {
	if !strings.Contains(n.Value, "$") {
		return
	}
	value := os.ExpandEnv(n.Value)
	if value == n.Value {
		return
	}
	n.Value = value
	const quoted = yaml.SingleQuotedStyle | yaml.DoubleQuotedStyle | yaml.LiteralStyle | yaml.FoldedStyle
	if n.Style&(quoted|yaml.TaggedStyle) == 0 {
		// Re-resolve plain scalars so "120" or "10ms" decode as numbers
		// and durations; the encoder quotes values that would not read
		// back as one plain scalar.
		n.Tag = ""
	}
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if err := c.LoopSettings().Validate(); err != nil {
		return fmt.Errorf("config: loop: %w", err)
	}
	if c.Host.Name == "" {
		return fmt.Errorf("config: host: name is required")
	}
	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("config: host: %w", err)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("config: log: %w", err)
	}
	return nil
}

// LoopSettings converts the loop section for loop.New.
func (c Config) LoopSettings() loop.Config {
	return loop.Config{
		FrameInterval: c.Loop.FrameInterval,
		FixedStep:     c.Loop.FixedStep,
		MaxFixedSteps: c.Loop.MaxFixedSteps,
		MaxFrames:     c.Loop.Frames,
	}
}

// Policy parses the host recreate policy.
func (c Config) Policy() (host.RecreatePolicy, error) {
	return host.ParsePolicy(c.Host.RecreatePolicy)
}

// SlogLevel parses the level name: debug, info, warn or error.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	return level, nil
}
