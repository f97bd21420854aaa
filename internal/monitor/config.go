package monitor

import (
	"fmt"
	"time"
)

// Config defines the schedule monitor configuration.
type Config struct {
	// Interval is the sleep between polling cycles.
	Interval time.Duration `yaml:"interval"`
	// StopTimeout bounds how long Stop waits for the loop to exit.
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// LateStartThreshold is how late a scheduled task may start before it is reported.
	LateStartThreshold time.Duration `yaml:"late_start_threshold"`
	// AutoStart starts monitoring when the daemon boots.
	AutoStart bool `yaml:"auto_start"`
	// AutoReplan triggers a replan whenever a cycle marks tasks overdue.
	AutoReplan bool `yaml:"auto_replan"`
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() Config {
	return Config{
		Interval:           15 * time.Minute,
		StopTimeout:        5 * time.Second,
		LateStartThreshold: 15 * time.Minute,
	}
}

// Validate checks the durations are usable.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", c.Interval)
	}
	if c.StopTimeout <= 0 {
		return fmt.Errorf("monitor stop_timeout must be positive, got %s", c.StopTimeout)
	}
	if c.LateStartThreshold < 0 {
		return fmt.Errorf("monitor late_start_threshold must not be negative")
	}
	return nil
}
