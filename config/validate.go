package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

var drivers = map[string]bool{
	"bugst": true,
	"tarm":  true,
}

// Validate checks configuration correctness.
// It performs declarative validation only and never mutates cfg.
// Zero values are accepted where Normalize supplies a default.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	b := cfg.Bus
	if b.Port == "" {
		return fmt.Errorf("bus: port is required")
	}
	if b.Driver != "" && !drivers[b.Driver] {
		return fmt.Errorf("bus: unknown driver %q", b.Driver)
	}
	if b.BaudRate < 0 {
		return fmt.Errorf("bus: baud_rate must be positive, got %d", b.BaudRate)
	}
	if b.Protocol != 0 && b.Protocol != 1 && b.Protocol != 2 {
		return fmt.Errorf("bus: protocol must be 1 or 2, got %d", b.Protocol)
	}
	if b.LatencyTimerMs < 0 {
		return fmt.Errorf("bus: latency_timer_ms must not be negative, got %d", b.LatencyTimerMs)
	}
	if b.PollIntervalMs < 0 {
		return fmt.Errorf("bus: poll_interval_ms must not be negative, got %d", b.PollIntervalMs)
	}

	if cfg.Log.Level != "" {
		if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", cfg.Log.Format)
	}

	return nil
}
