package application

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines monitor loop configuration.
type Config struct {
	PollIntervalSeconds     int    `yaml:"poll_interval_seconds"`
	FetchTimeoutSeconds     int    `yaml:"fetch_timeout_seconds"`
	CycleTimeoutSeconds     int    `yaml:"cycle_timeout_seconds"`
	DefaultThresholdMinutes int    `yaml:"default_threshold_minutes"`
	TelegramParseMode       string `yaml:"telegram_parse_mode"`
}

// LoadConfig loads monitor config from yaml or env. Env values fill gaps
// the yaml file leaves; the file path comes from MONITOR_CONFIG.
func LoadConfig() (Config, error) {
	cfg := Config{}

	if path := os.Getenv("MONITOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = getenvIntDefault("POLL_INTERVAL_SECONDS", 60)
	}
	if cfg.FetchTimeoutSeconds == 0 {
		cfg.FetchTimeoutSeconds = getenvIntDefault("FETCH_TIMEOUT_SECONDS", 10)
	}
	if cfg.CycleTimeoutSeconds == 0 {
		cfg.CycleTimeoutSeconds = getenvIntDefault("CYCLE_TIMEOUT_SECONDS", cfg.PollIntervalSeconds-10)
	}
	if cfg.DefaultThresholdMinutes == 0 {
		cfg.DefaultThresholdMinutes = getenvIntDefault("DEFAULT_THRESHOLD_MINUTES", 5)
	}
	if cfg.TelegramParseMode == "" {
		cfg.TelegramParseMode = os.Getenv("TELEGRAM_PARSE_MODE")
	}

	if cfg.PollIntervalSeconds <= 0 {
		return cfg, errors.New("monitor config: poll interval must be positive")
	}
	if cfg.CycleTimeoutSeconds <= 0 {
		cfg.CycleTimeoutSeconds = cfg.PollIntervalSeconds
	}
	if cfg.DefaultThresholdMinutes < 1 || cfg.DefaultThresholdMinutes > 60 {
		return cfg, errors.New("monitor config: default threshold must be in [1, 60]")
	}
	return cfg, nil
}

// PollInterval returns the poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// CycleTimeout returns the per-cycle deadline as a duration.
func (c Config) CycleTimeout() time.Duration {
	return time.Duration(c.CycleTimeoutSeconds) * time.Second
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
