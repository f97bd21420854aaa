// Package config loads the Cadence configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/fentz26/cadence/internal/logging"
	"github.com/fentz26/cadence/internal/models"
	"github.com/fentz26/cadence/internal/monitor"
	"gopkg.in/yaml.v3"
)

// Planner and calendar provider names.
const (
	PlannerLocal = "local"
	PlannerExec  = "exec"

	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Config holds the daemon configuration.
type Config struct {
	// UserID owns the profile, refinements and samples.
	UserID string `yaml:"user_id"`
	// Database is the SQLite file path.
	Database string `yaml:"database"`
	// Listen is the HTTP API address.
	Listen   string          `yaml:"listen"`
	Log      logging.Config  `yaml:"log"`
	Monitor  monitor.Config  `yaml:"monitor"`
	Planning PlanningConfig  `yaml:"planning"`
	Calendar CalendarConfig  `yaml:"calendar"`
	Profile  ProfileDefaults `yaml:"profile"`
}

// PlanningConfig selects the planning collaborator.
type PlanningConfig struct {
	// Planner is local or exec.
	Planner string `yaml:"planner"`
	// Command and Args run the exec planner.
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	// Timeout bounds one exec planner call.
	Timeout time.Duration `yaml:"timeout"`
	// HorizonDays bounds slot search.
	HorizonDays int `yaml:"horizon_days"`
	// DefaultWindow is used when a plan request has no window end.
	DefaultWindow time.Duration `yaml:"default_window"`
}

// CalendarConfig selects the calendar provider.
type CalendarConfig struct {
	// Provider is local or google.
	Provider   string `yaml:"provider"`
	CalendarID string `yaml:"calendar_id"`
	// CredentialsFile is the OAuth client JSON downloaded from Google.
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	// TokenFile holds an already-authorized OAuth token.
	TokenFile string `yaml:"token_file,omitempty"`
	// RequestsPerSecond paces calls to the provider API.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ProfileDefaults seed the profile created on first run.
type ProfileDefaults struct {
	Timezone              string              `yaml:"timezone"`
	WorkingHours          models.WorkingHours `yaml:"working_hours"`
	BufferHours           float64             `yaml:"buffer_hours"`
	AllowWeekends         bool                `yaml:"allow_weekends"`
	PreferMorningDeepWork bool                `yaml:"prefer_morning_deep_work"`
	MaxDailyWorkHours     float64             `yaml:"max_daily_work_hours"`
	LearningEnabled       bool                `yaml:"learning_enabled"`
}

// Dir returns ~/.cadence, or .cadence when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cadence"
	}
	return filepath.Join(home, ".cadence")
}

// DefaultPath is the configuration file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	p := models.DefaultProfile("")
	return &Config{
		UserID:   "default",
		Database: filepath.Join(Dir(), "cadence.db"),
		Listen:   "127.0.0.1:7466",
		Log:      logging.DefaultConfig(),
		Monitor:  monitor.DefaultConfig(),
		Planning: PlanningConfig{
			Planner:       PlannerLocal,
			Timeout:       2 * time.Minute,
			HorizonDays:   60,
			DefaultWindow: 14 * 24 * time.Hour,
		},
		Calendar: CalendarConfig{
			Provider:          ProviderLocal,
			CalendarID:        "primary",
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Profile: ProfileDefaults{
			Timezone:              p.Timezone,
			WorkingHours:          p.WorkingHours,
			BufferHours:           p.MinBufferBetweenTasks,
			AllowWeekends:         p.AllowWeekendScheduling,
			PreferMorningDeepWork: p.PreferMorningDeepWork,
			MaxDailyWorkHours:     p.MaxDailyWorkHours,
			LearningEnabled:       p.LearningEnabled,
		},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromHome loads configuration from ~/.cadence/config.yaml.
func LoadConfigFromHome() (*Config, error) {
	return LoadConfig(DefaultPath())
}

// SaveConfig saves configuration to a YAML file, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if err := c.Monitor.Validate(); err != nil {
		return err
	}

	switch c.Planning.Planner {
	case PlannerLocal:
	case PlannerExec:
		if c.Planning.Command == "" {
			return fmt.Errorf("planning.command is required for the exec planner")
		}
	default:
		return fmt.Errorf("invalid planner %q, must be: local or exec", c.Planning.Planner)
	}
	if c.Planning.HorizonDays < 1 {
		return fmt.Errorf("planning.horizon_days must be at least 1")
	}
	if c.Planning.DefaultWindow <= 0 {
		return fmt.Errorf("planning.default_window must be positive")
	}

	switch c.Calendar.Provider {
	case ProviderLocal:
	case ProviderGoogle:
		if c.Calendar.CredentialsFile == "" || c.Calendar.TokenFile == "" {
			return fmt.Errorf("calendar.credentials_file and calendar.token_file are required for google")
		}
	default:
		return fmt.Errorf("invalid calendar provider %q, must be: local or google", c.Calendar.Provider)
	}
	if c.Calendar.RequestsPerSecond <= 0 {
		return fmt.Errorf("calendar.requests_per_second must be positive")
	}

	if err := c.Profile.WorkingHours.Validate(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	if c.Profile.BufferHours < 0 {
		return fmt.Errorf("profile.buffer_hours must not be negative")
	}
	if _, err := time.LoadLocation(c.Profile.Timezone); err != nil {
		return fmt.Errorf("profile.timezone: %w", err)
	}
	return nil
}

// NewProfile builds the first profile for the configured user.
func (c *Config) NewProfile() *models.UserProfile {
	p := models.DefaultProfile(c.UserID)
	p.Timezone = c.Profile.Timezone
	p.WorkingHours = c.Profile.WorkingHours
	if c.Profile.WorkingHours.BreakStart != nil {
		b := *c.Profile.WorkingHours.BreakStart
		p.WorkingHours.BreakStart = &b
	}
	p.MinBufferBetweenTasks = c.Profile.BufferHours
	p.AllowWeekendScheduling = c.Profile.AllowWeekends
	p.PreferMorningDeepWork = c.Profile.PreferMorningDeepWork
	if c.Profile.MaxDailyWorkHours > 0 {
		p.MaxDailyWorkHours = c.Profile.MaxDailyWorkHours
	}
	p.LearningEnabled = c.Profile.LearningEnabled
	return p
}
