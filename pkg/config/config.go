// Package config loads the observer's configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:"127.0.0.1:7331"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Browser attachment. Empty DEBUGGER_URL launches a fresh browser.
	DebuggerURL  string        `env:"DEBUGGER_URL"`
	Headless     bool          `env:"HEADLESS" envDefault:"false"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`

	// Country resolution pipeline.
	GeocoderBaseURL   string        `env:"GEOCODER_BASE_URL" envDefault:"https://nominatim.openstreetmap.org"`
	EnricherBaseURL   string        `env:"ENRICHER_BASE_URL" envDefault:"https://restcountries.com/v3.1"`
	GeocodeTimeout    time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"8s"`
	OverrideFilePath  string        `env:"OVERRIDE_FILE"`
	GeocoderUserAgent string        `env:"GEOCODER_USER_AGENT" envDefault:"plonkdeck/1.0"`

	// Card pipeline.
	AnkiConnectURL    string `env:"ANKI_CONNECT_URL" envDefault:"http://127.0.0.1:8765"`
	DeckName          string `env:"DECK_NAME" envDefault:"PlonkDeck"`
	ModelName         string `env:"MODEL_NAME" envDefault:"Basic"`
	IncludeAnswerLink bool   `env:"INCLUDE_ANSWER_LINK" envDefault:"false"`

	// Lifecycle tuning.
	SettleDelay     time.Duration `env:"SETTLE_DELAY" envDefault:"2500ms"`
	AutoCreateCards bool          `env:"AUTO_CREATE_CARDS" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}
