package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"DATABASE_URL": "sqlite::memory:",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "production" {
		t.Fatalf("unexpected env: %s", cfg.Env)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.SessionCodeAttempts != 10 {
		t.Fatalf("unexpected code attempts: %d", cfg.SessionCodeAttempts)
	}
	if cfg.WatchMode != "push" || cfg.WatchPollInterval != 3*time.Second {
		t.Fatalf("unexpected watch settings: mode=%s interval=%s", cfg.WatchMode, cfg.WatchPollInterval)
	}
	if cfg.MeanRoundingPlaces != 1 || !cfg.MeanExcludeNonNumeric {
		t.Fatalf("unexpected mean policy: places=%d exclude=%v", cfg.MeanRoundingPlaces, cfg.MeanExcludeNonNumeric)
	}
	if cfg.DiscordEnabled() {
		t.Fatal("expected discord to be disabled by default")
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"ENV":                      "development",
		"DATABASE_URL":             "postgres://localhost/poker",
		"WATCH_MODE":               "poll",
		"WATCH_POLL_INTERVAL":      "5s",
		"MEAN_EXCLUDE_NON_NUMERIC": "false",
		"DISCORD_TOKEN":            "token",
		"DISCORD_CHANNEL_ID":       "channel",
		"SUMMARY_TIMEZONE":         "Asia/Tokyo",
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development mode")
	}
	if cfg.WatchMode != "poll" || cfg.WatchPollInterval != 5*time.Second {
		t.Fatalf("unexpected watch settings: mode=%s interval=%s", cfg.WatchMode, cfg.WatchPollInterval)
	}
	if cfg.MeanExcludeNonNumeric {
		t.Fatal("expected non-numeric votes to be kept")
	}
	if !cfg.DiscordEnabled() {
		t.Fatal("expected discord to be enabled")
	}
}

func TestParse_MissingDatabaseURL(t *testing.T) {
	if _, err := parse(env.Options{Environment: map[string]string{}}); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestParse_InvalidWatchMode(t *testing.T) {
	_, err := parse(env.Options{Environment: map[string]string{
		"DATABASE_URL": "sqlite::memory:",
		"WATCH_MODE":   "sometimes",
	}})
	if err == nil {
		t.Fatal("expected validation error for unknown watch mode")
	}
}
