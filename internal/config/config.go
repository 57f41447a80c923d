package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Coach     CoachConfig     `yaml:"coach"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
	// DefaultUser is the login that API-key and non-tailnet requests act as.
	DefaultUser string `yaml:"default_user"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// CoachConfig tunes live sessions and the dashboard.
type CoachConfig struct {
	FeedbackInterval  time.Duration `yaml:"feedback_interval"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	WeeklyGoalDefault int           `yaml:"weekly_goal_default"`
	StrictPushUp      bool          `yaml:"strict_pushup"`
	Timezone          string        `yaml:"timezone"`
}

// Location returns the time zone that calendar days and weeks are computed in.
func (c CoachConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix REPCOACH_ and underscore-separated paths:
//
//	REPCOACH_SERVER_HOST, REPCOACH_SERVER_PORT,
//	REPCOACH_DB_HOST, REPCOACH_DB_PORT, REPCOACH_DB_NAME,
//	REPCOACH_DB_USER, REPCOACH_DB_PASSWORD, REPCOACH_DB_SSLMODE,
//	REPCOACH_AUTH_API_KEY, REPCOACH_TAILSCALE_ENABLED,
//	REPCOACH_COACH_FEEDBACK_INTERVAL, REPCOACH_COACH_SESSION_TTL,
//	REPCOACH_COACH_WEEKLY_GOAL_DEFAULT, REPCOACH_COACH_STRICT_PUSHUP,
//	REPCOACH_COACH_TIMEZONE
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPCOACH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPCOACH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPCOACH_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("REPCOACH_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REPCOACH_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REPCOACH_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("REPCOACH_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REPCOACH_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("REPCOACH_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("REPCOACH_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("REPCOACH_COACH_FEEDBACK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Coach.FeedbackInterval = d
		}
	}
	if v := os.Getenv("REPCOACH_COACH_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Coach.SessionTTL = d
		}
	}
	if v := os.Getenv("REPCOACH_COACH_WEEKLY_GOAL_DEFAULT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Coach.WeeklyGoalDefault = n
		}
	}
	if v := os.Getenv("REPCOACH_COACH_STRICT_PUSHUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Coach.StrictPushUp = b
		}
	}
	if v := os.Getenv("REPCOACH_COACH_TIMEZONE"); v != "" {
		cfg.Coach.Timezone = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.DefaultUser == "" {
		cfg.Auth.DefaultUser = "default"
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "repcoach"
	}
	if cfg.Coach.FeedbackInterval == 0 {
		cfg.Coach.FeedbackInterval = 2 * time.Second
	}
	if cfg.Coach.SessionTTL == 0 {
		cfg.Coach.SessionTTL = 15 * time.Minute
	}
	if cfg.Coach.WeeklyGoalDefault == 0 {
		cfg.Coach.WeeklyGoalDefault = 200
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Coach.FeedbackInterval < 0 {
		return fmt.Errorf("coach.feedback_interval must not be negative")
	}
	if c.Coach.SessionTTL < 0 {
		return fmt.Errorf("coach.session_ttl must not be negative")
	}
	if c.Coach.WeeklyGoalDefault < 0 {
		return fmt.Errorf("coach.weekly_goal_default must not be negative")
	}
	if c.Coach.Timezone != "" {
		if _, err := time.LoadLocation(c.Coach.Timezone); err != nil {
			return fmt.Errorf("coach.timezone: %w", err)
		}
	}
	return nil
}
