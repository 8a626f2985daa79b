package geocode

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) ReverseGeocode(ctx context.Context, coord types.Coordinate) (*GeocodeResult, error) {
	args := m.Called(ctx, coord)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*GeocodeResult), args.Error(1)
}

type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) Enrich(ctx context.Context, countryCode string) (*types.EnrichmentData, error) {
	args := m.Called(ctx, countryCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.EnrichmentData), args.Error(1)
}

func mustCoord(t *testing.T, lat, lng float64) types.Coordinate {
	t.Helper()
	c, ok := types.NewCoordinate(lat, lng)
	require.True(t, ok)
	return c
}

func TestResolveOverrideShortCircuitsNetwork(t *testing.T) {
	geocoder := new(MockGeocoder)
	enricher := new(MockEnricher)
	enricher.On("Enrich", mock.Anything, "GT").Return(types.NewUnknownEnrichment(), nil)

	svc := NewGeocodeService(NewOverrideTable(), geocoder, enricher, slog.Default())

	// Documented override: within tolerance 0.2 of (40.97989806962013, -67.5)
	// the pipeline answers Guatemala without any geocoding call.
	for _, delta := range []float64{0, 0.05, -0.19, 0.199} {
		coord := mustCoord(t, 40.97989806962013+delta, -67.5)
		fact := svc.Resolve(context.Background(), coord, RoleActual, types.RankGameAPI)
		require.NotNil(t, fact)
		assert.Equal(t, "Guatemala", fact.Country)
		assert.Equal(t, "GT", fact.CountryCode)
		assert.Equal(t, types.RankOverride, fact.Provenance)
	}
	geocoder.AssertNotCalled(t, "ReverseGeocode", mock.Anything, mock.Anything)
}

func TestResolveOutsideOverrideTolerance(t *testing.T) {
	geocoder := new(MockGeocoder)
	enricher := new(MockEnricher)
	coord := mustCoord(t, 40.97989806962013+0.21, -67.5)

	geocoder.On("ReverseGeocode", mock.Anything, coord).
		Return(&GeocodeResult{Country: "United States", CountryCode: "US"}, nil)
	enricher.On("Enrich", mock.Anything, "US").
		Return(&types.EnrichmentData{DrivingSide: "right", Continent: "Americas"}, nil)

	fact := NewGeocodeService(NewOverrideTable(), geocoder, enricher, slog.Default()).
		Resolve(context.Background(), coord, RoleActual, types.RankGameAPI)

	require.NotNil(t, fact)
	assert.Equal(t, "United States", fact.Country)
	assert.Equal(t, types.RankGameAPI, fact.Provenance)
	geocoder.AssertExpectations(t)
}

func TestResolveGeocoderFailureReturnsNil(t *testing.T) {
	geocoder := new(MockGeocoder)
	enricher := new(MockEnricher)
	coord := mustCoord(t, 48.85, 2.35)

	geocoder.On("ReverseGeocode", mock.Anything, coord).
		Return(nil, types.ErrServiceUnavailable)

	fact := NewGeocodeService(NewOverrideTable(), geocoder, enricher, slog.Default()).
		Resolve(context.Background(), coord, RoleGuess, types.RankGameAPI)

	assert.Nil(t, fact, "caller decides on fallback; pipeline never fabricates")
	enricher.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
}

func TestResolveEnrichmentFailureUsesUnknownSentinels(t *testing.T) {
	geocoder := new(MockGeocoder)
	enricher := new(MockEnricher)
	coord := mustCoord(t, 48.85, 2.35)

	geocoder.On("ReverseGeocode", mock.Anything, coord).
		Return(&GeocodeResult{Country: "France", CountryCode: "FR", Locality: "Paris"}, nil)
	enricher.On("Enrich", mock.Anything, "FR").
		Return(nil, errors.New("boom"))

	fact := NewGeocodeService(NewOverrideTable(), geocoder, enricher, slog.Default()).
		Resolve(context.Background(), coord, RoleActual, types.RankGameAPI)

	require.NotNil(t, fact)
	assert.Equal(t, "France", fact.Country)
	require.NotNil(t, fact.Enrichment)
	assert.Equal(t, types.UnknownValue, fact.Enrichment.DrivingSide)
	assert.Equal(t, types.UnknownValue, fact.Enrichment.TLD)
}

func TestResolveInvalidCoordinate(t *testing.T) {
	svc := NewGeocodeService(NewOverrideTable(), new(MockGeocoder), new(MockEnricher), slog.Default())
	assert.Nil(t, svc.Resolve(context.Background(), types.Coordinate{}, RoleActual, types.RankGameAPI))
}

func TestResolveCarriesCoordinateRank(t *testing.T) {
	geocoder := new(MockGeocoder)
	enricher := new(MockEnricher)
	coord := mustCoord(t, 48.85, 2.35)

	geocoder.On("ReverseGeocode", mock.Anything, coord).
		Return(&GeocodeResult{Country: "France", CountryCode: "FR"}, nil)
	enricher.On("Enrich", mock.Anything, "FR").Return(types.NewUnknownEnrichment(), nil)

	fact := NewGeocodeService(NewOverrideTable(), geocoder, enricher, slog.Default()).
		Resolve(context.Background(), coord, RoleGuess, types.RankMapMeta)

	require.NotNil(t, fact)
	assert.Equal(t, types.RankMapMeta, fact.Provenance)
}
