package geocode

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/plonkdeck/plonkdeck/internal/metrics"
	"github.com/plonkdeck/plonkdeck/internal/types"
)

// Role labels which side of the round a resolution serves; it only affects
// logging and metrics, never the result.
type Role string

const (
	RoleActual Role = "actual"
	RoleGuess  Role = "guess"
)

// Service is the country resolution pipeline. Resolve never returns an error
// past this boundary: callers receive a usable fact or nil. rank is the
// provenance of the coordinate being resolved; the returned country fact
// inherits it (or RankOverride on an override hit) so the merge policy can
// weigh it against facts from other sources.
type Service interface {
	Resolve(ctx context.Context, coord types.Coordinate, role Role, rank types.SourceRank) *types.CountryFact
}

type ServiceImpl struct {
	logger    *slog.Logger
	overrides *OverrideTable
	geocoder  ReverseGeocoder
	enricher  Enricher
}

func NewGeocodeService(overrides *OverrideTable, geocoder ReverseGeocoder, enricher Enricher, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:    logger,
		overrides: overrides,
		geocoder:  geocoder,
		enricher:  enricher,
	}
}

// Resolve runs the three-step pipeline: override table, reverse geocoding,
// enrichment. The override short-circuits all network calls. A geocoding
// failure yields nil (the caller decides on fallback); an enrichment failure
// yields the fact with Unknown sentinels so downstream diffing still works.
func (s *ServiceImpl) Resolve(ctx context.Context, coord types.Coordinate, role Role, rank types.SourceRank) *types.CountryFact {
	ctx, span := otel.Tracer("GeocodeService").Start(ctx, "Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("coordinate", coord.Key()),
		attribute.String("role", string(role)),
	)

	l := s.logger.With(slog.String("method", "Resolve"), slog.String("role", string(role)))

	if !coord.Valid() {
		l.WarnContext(ctx, "resolve called with invalid coordinate")
		return nil
	}

	if fact, ok := s.overrides.Lookup(coord); ok {
		l.InfoContext(ctx, "override table hit",
			slog.String("coordinate", coord.Key()),
			slog.String("country", fact.Country))
		span.SetAttributes(attribute.Bool("override_hit", true))
		span.SetStatus(codes.Ok, "Resolved from override table")
		metrics.GeocodeResolutions.WithLabelValues("override").Inc()
		if fact.Enrichment == nil && fact.CountryCode != "" {
			fact.Enrichment = s.enrich(ctx, fact.CountryCode)
		}
		return fact
	}

	result, err := s.geocoder.ReverseGeocode(ctx, coord)
	if err != nil {
		l.WarnContext(ctx, "reverse geocoding failed",
			slog.String("coordinate", coord.Key()),
			slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Reverse geocoding failed")
		metrics.GeocodeResolutions.WithLabelValues("failed").Inc()
		return nil
	}

	fact := &types.CountryFact{
		Country:     result.Country,
		CountryCode: result.CountryCode,
		Locality:    result.Locality,
		Provenance:  rank,
	}
	if fact.CountryCode != "" {
		fact.Enrichment = s.enrich(ctx, fact.CountryCode)
	} else {
		fact.Enrichment = types.NewUnknownEnrichment()
	}

	l.InfoContext(ctx, "coordinate resolved",
		slog.String("coordinate", coord.Key()),
		slog.String("country", fact.Country))
	span.SetStatus(codes.Ok, "Resolved via geocoder")
	metrics.GeocodeResolutions.WithLabelValues("geocoded").Inc()
	return fact
}

// enrich degrades to Unknown sentinels on any failure; Unknown-vs-Unknown is
// not a meaningful difference to the clue synthesizer.
func (s *ServiceImpl) enrich(ctx context.Context, countryCode string) *types.EnrichmentData {
	data, err := s.enricher.Enrich(ctx, countryCode)
	if err != nil {
		s.logger.WarnContext(ctx, "enrichment failed, using unknown sentinels",
			slog.String("country_code", countryCode),
			slog.Any("error", err))
		return types.NewUnknownEnrichment()
	}
	return data
}
