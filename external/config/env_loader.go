package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/planning-poker/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                   string        `env:"ENV" envDefault:"production"`
	DatabaseURL           string        `env:"DATABASE_URL,required"`
	HTTPAddr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	SessionCodeAttempts   int           `env:"SESSION_CODE_ATTEMPTS" envDefault:"10"`
	WatchMode             string        `env:"WATCH_MODE" envDefault:"push"`
	WatchPollInterval     time.Duration `env:"WATCH_POLL_INTERVAL" envDefault:"3s"`
	MeanRoundingPlaces    int           `env:"MEAN_ROUNDING_PLACES" envDefault:"1"`
	MeanExcludeNonNumeric bool          `env:"MEAN_EXCLUDE_NON_NUMERIC" envDefault:"true"`
	DiscordToken          string        `env:"DISCORD_TOKEN"`
	DiscordChannelID      string        `env:"DISCORD_CHANNEL_ID"`
	SummaryWebhookURL     string        `env:"SUMMARY_WEBHOOK_URL"`
	SummaryTimezone       string        `env:"SUMMARY_TIMEZONE" envDefault:"UTC"`
}

// Load reads an optional .env file from the working directory, then the
// process environment. Variables already set in the environment win.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                   raw.Env,
		DatabaseURL:           raw.DatabaseURL,
		HTTPAddr:              raw.HTTPAddr,
		SessionCodeAttempts:   raw.SessionCodeAttempts,
		WatchMode:             raw.WatchMode,
		WatchPollInterval:     raw.WatchPollInterval,
		MeanRoundingPlaces:    raw.MeanRoundingPlaces,
		MeanExcludeNonNumeric: raw.MeanExcludeNonNumeric,
		DiscordToken:          raw.DiscordToken,
		DiscordChannelID:      raw.DiscordChannelID,
		SummaryWebhookURL:     raw.SummaryWebhookURL,
		SummaryTimezone:       raw.SummaryTimezone,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
