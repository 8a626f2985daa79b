package round

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(slog.Default())
}

func mustCoord(t *testing.T, lat, lng float64) types.Coordinate {
	t.Helper()
	c, ok := types.NewCoordinate(lat, lng)
	require.True(t, ok)
	return c
}

func TestMergeIsRankMonotonicForCountry(t *testing.T) {
	store := newTestStore(t)
	key := types.MakeRoundKey("s", 1)

	high := &types.CountryFact{Country: "France", CountryCode: "FR", Provenance: types.RankGameAPI}
	low := &types.CountryFact{Country: "Belgium", CountryCode: "BE", Provenance: types.RankDOMText}

	require.True(t, store.SetCountry(key, RoleActual, high))
	assert.False(t, store.SetCountry(key, RoleActual, low), "lower rank after higher is a no-op")

	snap, err := store.Snapshot(key)
	require.NoError(t, err)
	assert.Equal(t, "France", snap.Actual.Country.Country)

	// The other direction always replaces.
	store2 := newTestStore(t)
	require.True(t, store2.SetCountry(key, RoleActual, low))
	require.True(t, store2.SetCountry(key, RoleActual, high))
	snap2, err := store2.Snapshot(key)
	require.NoError(t, err)
	assert.Equal(t, "France", snap2.Actual.Country.Country)
}

func TestMergeCoordinateRankIndependentOfCountryRank(t *testing.T) {
	store := newTestStore(t)
	key := types.MakeRoundKey("s", 1)

	// High-rank coordinate from the game API.
	require.True(t, store.Merge(key, types.Fact{
		Kind:       types.FactCoordinate,
		Rank:       types.RankGameAPI,
		Coordinate: mustCoord(t, 48.85, 2.35),
	}))
	// Low-rank country from DOM text still lands: the coordinate's rank does
	// not shield the (absent) country field.
	require.True(t, store.SetCountry(key, RoleActual, &types.CountryFact{
		Country: "France", Provenance: types.RankDOMText,
	}))

	snap, err := store.Snapshot(key)
	require.NoError(t, err)
	assert.Equal(t, types.RankGameAPI, snap.Actual.LocationRank)
	assert.Equal(t, types.RankDOMText, snap.Actual.Country.Provenance)

	// A low-rank coordinate cannot displace the API one.
	assert.False(t, store.Merge(key, types.Fact{
		Kind:       types.FactCoordinate,
		Rank:       types.RankMapMeta,
		Coordinate: mustCoord(t, 50.0, 4.0),
	}))
	snap, _ = store.Snapshot(key)
	assert.InDelta(t, 48.85, snap.Actual.Location.Lat, 1e-9)
}

func TestMergeDedupsRepeatedDeliveries(t *testing.T) {
	store := newTestStore(t)
	key := types.MakeRoundKey("s", 1)
	fact := types.Fact{
		Kind:       types.FactCoordinate,
		Rank:       types.RankGameAPI,
		Coordinate: mustCoord(t, 48.85, 2.35),
	}

	assert.True(t, store.Merge(key, fact))
	assert.False(t, store.Merge(key, fact), "duplicate delivery is swallowed")
	assert.False(t, store.Merge(key, fact))
}

func TestMergeGuessSideIndependent(t *testing.T) {
	store := newTestStore(t)
	key := types.MakeRoundKey("s", 1)

	require.True(t, store.Merge(key, types.Fact{
		Kind:       types.FactGuessCoordinate,
		Rank:       types.RankGameAPI,
		Coordinate: mustCoord(t, 40.7, -74.0),
	}))
	require.True(t, store.SetCountry(key, RoleGuess, &types.CountryFact{
		Country: "United States", CountryCode: "US", Provenance: types.RankGameAPI,
	}))

	snap, err := store.Snapshot(key)
	require.NoError(t, err)
	assert.Nil(t, snap.Actual.Location)
	assert.Equal(t, "United States", snap.Guess.Country.Country)
}

func TestEqualRankKeepsIncumbentEnrichment(t *testing.T) {
	store := newTestStore(t)
	key := types.MakeRoundKey("s", 1)

	enriched := &types.CountryFact{
		Country:    "France",
		Provenance: types.RankGameAPI,
		Enrichment: &types.EnrichmentData{TLD: ".fr", DrivingSide: "right"},
	}
	require.True(t, store.SetCountry(key, RoleActual, enriched))
	require.True(t, store.SetCountry(key, RoleActual, &types.CountryFact{
		Country: "France", CountryCode: "FR", Provenance: types.RankGameAPI,
	}))

	snap, err := store.Snapshot(key)
	require.NoError(t, err)
	require.NotNil(t, snap.Actual.Country.Enrichment)
	assert.Equal(t, ".fr", snap.Actual.Country.Enrichment.TLD)
	assert.Equal(t, "FR", snap.Actual.Country.CountryCode)
}

func TestScoreWriteOnce(t *testing.T) {
	store := newTestStore(t)
	key := types.MakeRoundKey("s", 1)

	require.True(t, store.Merge(key, types.Fact{Kind: types.FactScore, Rank: types.RankGameAPI, Score: 1337}))
	assert.False(t, store.Merge(key, types.Fact{Kind: types.FactScore, Rank: types.RankGameAPI, Score: 200, RoundHint: 9}))

	snap, err := store.Snapshot(key)
	require.NoError(t, err)
	require.NotNil(t, snap.Score)
	assert.InDelta(t, 1337, *snap.Score, 1e-9)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := newTestStore(t)
	key := types.MakeRoundKey("s", 1)
	store.SetCountry(key, RoleActual, &types.CountryFact{Country: "France", Provenance: types.RankGameAPI})

	snap, err := store.Snapshot(key)
	require.NoError(t, err)
	snap.Actual.Country.Country = "mutated"

	again, err := store.Snapshot(key)
	require.NoError(t, err)
	assert.Equal(t, "France", again.Actual.Country.Country)
}

func TestSnapshotUnknownKey(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Snapshot(types.MakeRoundKey("nope", 1))
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRecordsRetainedAcrossRounds(t *testing.T) {
	store := newTestStore(t)
	k1 := types.MakeRoundKey("s", 1)
	k2 := types.MakeRoundKey("s", 2)

	store.MarkCardCreated(k1)
	store.GetOrCreate(k2)

	snap, err := store.Snapshot(k1)
	require.NoError(t, err)
	assert.True(t, snap.CardCreated)
	assert.Len(t, store.Keys(), 2)
}
