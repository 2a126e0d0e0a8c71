// Package config loads the YAML file describing a servo bus and its logging.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Bus Bus `yaml:"bus"`
	Log Log `yaml:"log"`
}

// ---- BUS ----

type Bus struct {
	Port           string `yaml:"port"`
	Driver         string `yaml:"driver"` // bugst | tarm
	BaudRate       int    `yaml:"baud_rate"`
	Protocol       int    `yaml:"protocol"` // 1 | 2
	LatencyTimerMs int    `yaml:"latency_timer_ms"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
}

// LatencyTimer returns the configured adapter latency.
func (b Bus) LatencyTimer() time.Duration {
	return time.Duration(b.LatencyTimerMs) * time.Millisecond
}

// PollInterval returns the configured read poll interval.
func (b Bus) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMs) * time.Millisecond
}

// ---- LOG ----

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// Load reads and decodes the file at path. The result is neither validated
// nor normalized.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
