package config

import (
	"fmt"
	"time"
)

const (
	WatchModePush = "push"
	WatchModePoll = "poll"
)

type Config struct {
	Env                   string
	DatabaseURL           string
	HTTPAddr              string
	SessionCodeAttempts   int
	WatchMode             string
	WatchPollInterval     time.Duration
	MeanRoundingPlaces    int
	MeanExcludeNonNumeric bool
	DiscordToken          string
	DiscordChannelID      string
	SummaryWebhookURL     string
	SummaryTimezone       string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.SessionCodeAttempts <= 0 {
		return fmt.Errorf("SESSION_CODE_ATTEMPTS must be positive, got %d", c.SessionCodeAttempts)
	}
	switch c.WatchMode {
	case WatchModePush, WatchModePoll:
	default:
		return fmt.Errorf("WATCH_MODE must be %q or %q, got %q", WatchModePush, WatchModePoll, c.WatchMode)
	}
	if c.WatchPollInterval <= 0 {
		return fmt.Errorf("WATCH_POLL_INTERVAL must be positive, got %s", c.WatchPollInterval)
	}
	if c.MeanRoundingPlaces < 0 {
		return fmt.Errorf("MEAN_ROUNDING_PLACES must not be negative, got %d", c.MeanRoundingPlaces)
	}
	if (c.DiscordToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	if _, err := time.LoadLocation(c.SummaryTimezone); err != nil {
		return fmt.Errorf("SUMMARY_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "SUMMARY_TIMEZONE", value: c.SummaryTimezone},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}
