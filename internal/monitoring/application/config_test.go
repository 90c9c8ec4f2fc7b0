package application

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MONITOR_CONFIG", "")
	t.Setenv("POLL_INTERVAL_SECONDS", "")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "")
	t.Setenv("CYCLE_TIMEOUT_SECONDS", "")
	t.Setenv("DEFAULT_THRESHOLD_MINUTES", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PollInterval() != time.Minute {
		t.Fatalf("expected 1m poll interval, got %v", cfg.PollInterval())
	}
	if cfg.FetchTimeout() != 10*time.Second {
		t.Fatalf("expected 10s fetch timeout, got %v", cfg.FetchTimeout())
	}
	if cfg.CycleTimeout() != 50*time.Second {
		t.Fatalf("expected 50s cycle timeout, got %v", cfg.CycleTimeout())
	}
	if cfg.DefaultThresholdMinutes != 5 {
		t.Fatalf("expected default threshold 5, got %d", cfg.DefaultThresholdMinutes)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.yaml")
	data := []byte("poll_interval_seconds: 30\nfetch_timeout_seconds: 5\ndefault_threshold_minutes: 10\ntelegram_parse_mode: MarkdownV2\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MONITOR_CONFIG", path)
	t.Setenv("CYCLE_TIMEOUT_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Fatalf("expected 30s poll interval, got %v", cfg.PollInterval())
	}
	if cfg.FetchTimeout() != 5*time.Second {
		t.Fatalf("expected 5s fetch timeout, got %v", cfg.FetchTimeout())
	}
	if cfg.DefaultThresholdMinutes != 10 {
		t.Fatalf("expected threshold 10, got %d", cfg.DefaultThresholdMinutes)
	}
	if cfg.TelegramParseMode != "MarkdownV2" {
		t.Fatalf("expected MarkdownV2 parse mode, got %q", cfg.TelegramParseMode)
	}
}

func TestLoadConfigRejectsBadThreshold(t *testing.T) {
	t.Setenv("MONITOR_CONFIG", "")
	t.Setenv("DEFAULT_THRESHOLD_MINUTES", "61")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for threshold above 60")
	}
}
