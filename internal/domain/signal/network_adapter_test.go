package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

const gameAPIBody = `{
	"token": "AbCdEf123",
	"round": 2,
	"state": "started",
	"rounds": [
		{"lat": 48.85, "lng": 2.35, "panoId": "ab12", "heading": 110.5, "pitch": -3.2, "zoom": 0},
		{"lat": -33.86, "lng": 151.2, "panoId": "cd34", "heading": 12.0, "pitch": 0, "zoom": 1}
	],
	"player": {
		"guesses": [
			{"lat": 40.7, "lng": -74.0, "roundScoreInPoints": 1337}
		]
	}
}`

func factsOfKind(facts []types.Fact, kind types.FactKind) []types.Fact {
	var out []types.Fact
	for _, f := range facts {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestNetworkAdapterExtractsGamePayload(t *testing.T) {
	adapter := NewNetworkAdapter()
	facts := adapter.Extract([]byte(gameAPIBody))
	require.NotEmpty(t, facts)

	coords := factsOfKind(facts, types.FactCoordinate)
	require.Len(t, coords, 2)
	assert.Equal(t, types.RankGameAPI, coords[0].Rank)
	assert.Equal(t, 1, coords[0].RoundHint)
	assert.InDelta(t, 48.85, coords[0].Coordinate.Lat, 1e-9)
	assert.Equal(t, 2, coords[1].RoundHint)

	panos := factsOfKind(facts, types.FactPanoramaID)
	require.Len(t, panos, 2)
	assert.Equal(t, "ab12", panos[0].PanoramaID)

	cameras := factsOfKind(facts, types.FactCameraPose)
	require.Len(t, cameras, 2)
	assert.InDelta(t, 110.5, cameras[0].Camera.Heading, 1e-9)

	guesses := factsOfKind(facts, types.FactGuessCoordinate)
	require.Len(t, guesses, 1)
	assert.InDelta(t, -74.0, guesses[0].Coordinate.Lng, 1e-9)

	scores := factsOfKind(facts, types.FactScore)
	require.Len(t, scores, 1)
	assert.InDelta(t, 1337, scores[0].Score, 1e-9)
}

func TestNetworkAdapterExtractsEmbeddedData(t *testing.T) {
	body := `{"props":{"pageProps":{"game":` + gameAPIBody + `}}}`
	facts := NewNetworkAdapter().Extract([]byte(body))
	require.NotEmpty(t, facts)
	for _, f := range facts {
		assert.Equal(t, types.RankEmbeddedData, f.Rank, "embedded data ranks below the live API")
	}
}

func TestNetworkAdapterExtractsMapMeta(t *testing.T) {
	body := `)]}'` + "\n" + `[[1,[2,"xx"]],[[null,["FR"],[48.858222,2.2945]]]]`
	facts := NewNetworkAdapter().Extract([]byte(body))

	hints := factsOfKind(facts, types.FactCountryCodeHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "FR", hints[0].CountryCode)
	assert.Equal(t, "France", hints[0].CountryName)
	assert.Equal(t, types.RankMapMeta, hints[0].Rank)

	coords := factsOfKind(facts, types.FactCoordinate)
	require.Len(t, coords, 1)
	assert.InDelta(t, 48.858222, coords[0].Coordinate.Lat, 1e-9)
}

func TestNetworkAdapterIgnoresGarbage(t *testing.T) {
	adapter := NewNetworkAdapter()
	assert.Nil(t, adapter.Extract(nil))
	assert.Nil(t, adapter.Extract([]byte("")))
	assert.Nil(t, adapter.Extract([]byte("<html>not json</html>")))
	assert.Nil(t, adapter.Extract([]byte(`{"unrelated": true}`)))
	assert.Nil(t, adapter.Extract([]byte(`{"token":"x","rounds":[]}`)))
}

func TestNetworkAdapterRejectsNonFiniteCoordinates(t *testing.T) {
	body := `{"token":"t","rounds":[{"lat":null,"lng":2.35,"panoId":"p1"}]}`
	facts := NewNetworkAdapter().Extract([]byte(body))
	assert.Empty(t, factsOfKind(facts, types.FactCoordinate))
	assert.Len(t, factsOfKind(facts, types.FactPanoramaID), 1)
}
