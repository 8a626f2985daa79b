package geocode

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// OverrideEntry corrects a known-bad reverse-geocoding result. Any coordinate
// within ToleranceRadius (Chebyshev) of Center resolves to Fact directly,
// short-circuiting every network call.
type OverrideEntry struct {
	Center          types.Coordinate
	ToleranceRadius float64
	Fact            types.CountryFact
}

// OverrideTable is consulted first by the pipeline; first matching entry wins.
type OverrideTable struct {
	entries []OverrideEntry
}

// builtinOverrides covers coordinates general-purpose geocoders are known to
// misclassify, mostly game locations pinned just off an international
// boundary or coastline.
func builtinOverrides() []OverrideEntry {
	coord := func(lat, lng float64) types.Coordinate {
		c, _ := types.NewCoordinate(lat, lng)
		return c
	}
	fact := func(name, code string) types.CountryFact {
		return types.CountryFact{Country: name, CountryCode: code, Provenance: types.RankOverride}
	}
	return []OverrideEntry{
		// Open-ocean location the game attributes to Guatemala; geocoders
		// return nothing or the nearest US waters.
		{Center: coord(40.97989806962013, -67.5), ToleranceRadius: 0.2, Fact: fact("Guatemala", "GT")},
		// Jungfraujoch camera sits on the Bern/Valais ridge; some geocoders
		// flip to Italy.
		{Center: coord(46.547, 7.985), ToleranceRadius: 0.01, Fact: fact("Switzerland", "CH")},
		// Baarle-Hertog exclaves inside the Netherlands.
		{Center: coord(51.4402, 4.9302), ToleranceRadius: 0.006, Fact: fact("Belgium", "BE")},
	}
}

// NewOverrideTable builds the table from the built-in entries plus optional
// user entries (appended after, so built-ins keep precedence on overlap).
func NewOverrideTable(extra ...OverrideEntry) *OverrideTable {
	return &OverrideTable{entries: append(builtinOverrides(), extra...)}
}

// Lookup returns the first entry whose tolerance covers coord.
func (t *OverrideTable) Lookup(coord types.Coordinate) (*types.CountryFact, bool) {
	for _, e := range t.entries {
		if coord.ChebyshevDistance(e.Center) <= e.ToleranceRadius {
			fact := e.Fact
			return &fact, true
		}
	}
	return nil, false
}

// Len reports how many entries the table holds.
func (t *OverrideTable) Len() int {
	return len(t.entries)
}

type overrideFileEntry struct {
	Lat             float64 `json:"lat"`
	Lng             float64 `json:"lng"`
	ToleranceRadius float64 `json:"tolerance_radius"`
	Country         string  `json:"country"`
	CountryCode     string  `json:"country_code"`
}

// LoadOverrideFile reads user override entries from a JSON list. Entries with
// invalid coordinates or an empty country are rejected.
func LoadOverrideFile(path string) ([]OverrideEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading override file: %w", err)
	}
	var raw []overrideFileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing override file: %w", err)
	}
	entries := make([]OverrideEntry, 0, len(raw))
	for i, e := range raw {
		coord, ok := types.NewCoordinate(e.Lat, e.Lng)
		if !ok || e.Country == "" || e.ToleranceRadius <= 0 {
			return nil, fmt.Errorf("override entry %d is invalid", i)
		}
		entries = append(entries, OverrideEntry{
			Center:          coord,
			ToleranceRadius: e.ToleranceRadius,
			Fact: types.CountryFact{
				Country:     e.Country,
				CountryCode: e.CountryCode,
				Provenance:  types.RankOverride,
			},
		})
	}
	return entries, nil
}
