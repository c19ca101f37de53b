package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the runner configuration loaded from defaults, .env and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	ServiceBaseURL   string        `mapstructure:"service_base_url"`
	RequestTimeoutMs int64         `mapstructure:"request_timeout_ms"`
	RequestTimeout   time.Duration `mapstructure:"-"`

	JobsFile           string        `mapstructure:"jobs_file"`
	SinksFile          string        `mapstructure:"sinks_file"`
	RunIntervalSeconds int64         `mapstructure:"run_interval"`
	RunInterval        time.Duration `mapstructure:"-"`
	JobConcurrency     int           `mapstructure:"job_concurrency"`

	TaskTimeoutSeconds int64         `mapstructure:"task_timeout_seconds"`
	TaskTimeout        time.Duration `mapstructure:"-"`
	PollIntervalMs     int64         `mapstructure:"poll_interval_ms"`
	PollInterval       time.Duration `mapstructure:"-"`

	JournalType           string        `mapstructure:"journal_type"`
	JournalPath           string        `mapstructure:"journal_path"`
	JournalTTLSeconds     int64         `mapstructure:"journal_ttl_seconds"`
	JournalCleanupSeconds int64         `mapstructure:"journal_cleanup_interval_seconds"`
	JournalTTL            time.Duration `mapstructure:"-"`
	JournalCleanup        time.Duration `mapstructure:"-"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "indicator-runner")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("service_base_url", "http://127.0.0.1:8000")
	v.SetDefault("request_timeout_ms", 30000)
	v.SetDefault("jobs_file", "./configs/jobs.yaml")
	v.SetDefault("sinks_file", "./configs/sinks.yaml")
	v.SetDefault("run_interval", 3600) // seconds
	v.SetDefault("job_concurrency", 4)
	v.SetDefault("task_timeout_seconds", 60)
	v.SetDefault("poll_interval_ms", 1000)
	v.SetDefault("journal_type", "bbolt")
	v.SetDefault("journal_path", "./data/tasks.db")
	v.SetDefault("journal_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("journal_cleanup_interval_seconds", int64(time.Hour/time.Second))
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ServiceBaseURL = strings.TrimSpace(cfg.ServiceBaseURL)
	if cfg.ServiceBaseURL == "" {
		return nil, fmt.Errorf("service_base_url is required")
	}
	if cfg.RequestTimeoutMs <= 0 {
		return nil, fmt.Errorf("invalid request_timeout_ms (must be positive milliseconds)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMs) * time.Millisecond

	if cfg.RunIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid run_interval (must be positive seconds)")
	}
	cfg.RunInterval = time.Duration(cfg.RunIntervalSeconds) * time.Second

	if cfg.JobConcurrency <= 0 {
		return nil, fmt.Errorf("invalid job_concurrency (must be positive)")
	}

	if cfg.TaskTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid task_timeout_seconds (must be positive seconds)")
	}
	if cfg.PollIntervalMs <= 0 {
		return nil, fmt.Errorf("invalid poll_interval_ms (must be positive milliseconds)")
	}
	cfg.TaskTimeout = time.Duration(cfg.TaskTimeoutSeconds) * time.Second
	cfg.PollInterval = time.Duration(cfg.PollIntervalMs) * time.Millisecond

	if cfg.JournalTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid journal_ttl_seconds (must be positive seconds)")
	}
	if cfg.JournalCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid journal_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.JournalTTL = time.Duration(cfg.JournalTTLSeconds) * time.Second
	cfg.JournalCleanup = time.Duration(cfg.JournalCleanupSeconds) * time.Second

	return &cfg, nil
}
