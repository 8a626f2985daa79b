package geocode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

func TestOverrideLookupChebyshev(t *testing.T) {
	table := NewOverrideTable()

	inside := mustCoord(t, 40.97989806962013+0.15, -67.5-0.19)
	fact, ok := table.Lookup(inside)
	require.True(t, ok)
	assert.Equal(t, "Guatemala", fact.Country)

	// Chebyshev, not Euclidean: both deltas at 0.19 are still inside even
	// though the Euclidean distance exceeds 0.2.
	corner := mustCoord(t, 40.97989806962013+0.19, -67.5+0.19)
	_, ok = table.Lookup(corner)
	assert.True(t, ok)

	outside := mustCoord(t, 40.97989806962013+0.25, -67.5)
	_, ok = table.Lookup(outside)
	assert.False(t, ok)
}

func TestOverrideLookupReturnsCopy(t *testing.T) {
	table := NewOverrideTable()
	coord := mustCoord(t, 40.97989806962013, -67.5)

	fact, ok := table.Lookup(coord)
	require.True(t, ok)
	fact.Country = "mutated"

	again, ok := table.Lookup(coord)
	require.True(t, ok)
	assert.Equal(t, "Guatemala", again.Country)
}

func TestOverrideFirstEntryWins(t *testing.T) {
	extra := OverrideEntry{
		Center:          mustCoord(t, 40.97989806962013, -67.5),
		ToleranceRadius: 5,
		Fact:            types.CountryFact{Country: "Atlantis", Provenance: types.RankOverride},
	}
	table := NewOverrideTable(extra)

	fact, ok := table.Lookup(mustCoord(t, 40.97989806962013, -67.5))
	require.True(t, ok)
	assert.Equal(t, "Guatemala", fact.Country, "built-ins precede user entries")

	fact, ok = table.Lookup(mustCoord(t, 43.5, -67.5))
	require.True(t, ok)
	assert.Equal(t, "Atlantis", fact.Country)
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")
	content := `[{"lat": 12.5, "lng": 100.1, "tolerance_radius": 0.3, "country": "Thailand", "country_code": "TH"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := LoadOverrideFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Thailand", entries[0].Fact.Country)
	assert.Equal(t, types.RankOverride, entries[0].Fact.Provenance)
}

func TestLoadOverrideFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.json")

	require.NoError(t, os.WriteFile(path, []byte(`[{"lat": 1, "lng": 2, "tolerance_radius": 0, "country": "X"}]`), 0o644))
	_, err := LoadOverrideFile(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = LoadOverrideFile(path)
	assert.Error(t, err)

	_, err = LoadOverrideFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
