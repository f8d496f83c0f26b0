package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/sluice/codec"
	"github.com/pithecene-io/sluice/log"
)

// Config represents a sluice.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	Redis   RedisConfig   `yaml:"redis"`
	Stream  StreamConfig  `yaml:"stream"`
	Archive ArchiveConfig `yaml:"archive"`
	Log     LogConfig     `yaml:"log"`
}

// RedisConfig holds pub/sub connection defaults.
type RedisConfig struct {
	URL       string   `yaml:"url"`
	Channel   string   `yaml:"channel,omitempty"`
	EndMarker string   `yaml:"end_marker,omitempty"`
	Timeout   Duration `yaml:"timeout,omitempty"`
	Retries   *int     `yaml:"retries,omitempty"`
}

// StreamConfig holds consumption defaults shared by tail, last and archive.
type StreamConfig struct {
	Codec       string   `yaml:"codec"`
	Count       int      `yaml:"count"`
	Timeout     Duration `yaml:"timeout"`
	SkipInvalid bool     `yaml:"skip_invalid"`
}

// ArchiveConfig holds archive storage defaults.
type ArchiveConfig struct {
	Dataset       string   `yaml:"dataset"`
	Backend       string   `yaml:"backend"`
	Path          string   `yaml:"path"`
	Region        string   `yaml:"region"`
	Endpoint      string   `yaml:"endpoint"`
	S3PathStyle   bool     `yaml:"s3_path_style"`
	Source        string   `yaml:"source"`
	FlushCount    int      `yaml:"flush_count"`
	FlushInterval Duration `yaml:"flush_interval"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks enumerated and numeric fields.
func (c *Config) Validate() error {
	var errs []error

	if _, err := codec.Parse(c.Stream.Codec); err != nil {
		errs = append(errs, fmt.Errorf("stream.codec: %w", err))
	}
	if c.Stream.Count < 0 {
		errs = append(errs, fmt.Errorf("stream.count must be >= 0, got %d", c.Stream.Count))
	}
	if c.Redis.Retries != nil && *c.Redis.Retries < 0 {
		errs = append(errs, fmt.Errorf("redis.retries must be >= 0, got %d", *c.Redis.Retries))
	}
	switch c.Archive.Backend {
	case "", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("archive.backend %q (must be fs or s3)", c.Archive.Backend))
	}
	if c.Archive.FlushCount < 0 {
		errs = append(errs, fmt.Errorf("archive.flush_count must be >= 0, got %d", c.Archive.FlushCount))
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	return errors.Join(errs...)
}
