package main

import (
	"fmt"
	"log/slog"

	"github.com/plonkdeck/plonkdeck/internal/domain/card"
	"github.com/plonkdeck/plonkdeck/internal/domain/geocode"
	"github.com/plonkdeck/plonkdeck/internal/domain/lifecycle"
	"github.com/plonkdeck/plonkdeck/internal/domain/round"
	"github.com/plonkdeck/plonkdeck/internal/domain/signal"
	"github.com/plonkdeck/plonkdeck/internal/hostenv"
	"github.com/plonkdeck/plonkdeck/pkg/config"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Store    *round.MemoryStore
	Identity *signal.IdentityResolver

	GeocodeService geocode.Service
	CardService    card.Service

	Machine *lifecycle.Machine
	Source  hostenv.Source
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.Store = round.NewMemoryStore(logger)
	deps.Identity = signal.NewIdentityResolver(logger)

	if err := deps.initGeocoding(); err != nil {
		return nil, fmt.Errorf("failed to init geocoding: %w", err)
	}

	deps.initCards()
	deps.initMachine()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initGeocoding() error {
	var extra []geocode.OverrideEntry
	if d.Config.OverrideFilePath != "" {
		entries, err := geocode.LoadOverrideFile(d.Config.OverrideFilePath)
		if err != nil {
			return fmt.Errorf("loading override file: %w", err)
		}
		extra = entries
		d.Logger.Info("loaded coordinate overrides",
			slog.String("path", d.Config.OverrideFilePath),
			slog.Int("count", len(entries)))
	}
	overrides := geocode.NewOverrideTable(extra...)

	geocoder := geocode.NewHTTPGeocoder(
		d.Config.GeocoderBaseURL,
		d.Config.GeocoderUserAgent,
		d.Config.GeocodeTimeout,
		d.Logger,
	)
	enricher := geocode.NewHTTPEnricher(d.Config.EnricherBaseURL, d.Config.GeocodeTimeout, d.Logger)

	d.GeocodeService = geocode.NewGeocodeService(overrides, geocoder, enricher, d.Logger)
	d.Logger.Info("geocoding pipeline initialized")
	return nil
}

func (d *Dependencies) initCards() {
	rpc := card.NewHTTPRPCClient(d.Config.AnkiConnectURL, d.Config.GeocodeTimeout, d.Logger)
	d.CardService = card.NewCreatorService(rpc, d.Config.DeckName, d.Config.ModelName, d.Logger)
	d.Logger.Info("card pipeline initialized",
		slog.String("deck", d.Config.DeckName),
		slog.String("model", d.Config.ModelName))
}

func (d *Dependencies) initMachine() {
	d.Machine = lifecycle.NewMachine(
		d.Store,
		d.GeocodeService,
		d.CardService,
		d.Identity,
		lifecycle.Options{
			SettleDelay:     d.Config.SettleDelay,
			AutoCreateCards: d.Config.AutoCreateCards,
		},
		d.Logger,
	)

	d.Source = hostenv.NewRodSource(d.Machine, hostenv.Options{
		DebuggerURL:  d.Config.DebuggerURL,
		Headless:     d.Config.Headless,
		PollInterval: d.Config.PollInterval,
	}, d.Logger)

	d.Logger.Info("lifecycle machine initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Source != nil {
		if err := d.Source.Close(); err != nil {
			d.Logger.Warn("closing browser source", slog.Any("error", err))
		}
	}
	d.Logger.Info("cleanup completed")
}
