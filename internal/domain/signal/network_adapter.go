package signal

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// NetworkAdapter extracts facts from intercepted response bodies. It is a pure
// observer: it only ever reads the byte slice it is handed, and anything it
// cannot parse is ignored silently. Three families of payloads matter:
//
//   - the game API round payload (highest-value source)
//   - server-rendered pages embedding the same game object in __NEXT_DATA__
//   - map-provider panorama metadata, which leaks a country code
type NetworkAdapter struct{}

func NewNetworkAdapter() *NetworkAdapter {
	return &NetworkAdapter{}
}

// gamePayload mirrors the slice of the game API response we care about.
// Everything is optional; absent fields decode to zero values.
type gamePayload struct {
	Token  string `json:"token"`
	Round  int    `json:"round"`
	State  string `json:"state"`
	Rounds []struct {
		Lat     *float64 `json:"lat"`
		Lng     *float64 `json:"lng"`
		PanoID  string   `json:"panoId"`
		Heading float64  `json:"heading"`
		Pitch   float64  `json:"pitch"`
		Zoom    float64  `json:"zoom"`
	} `json:"rounds"`
	Player struct {
		Guesses []struct {
			Lat                *float64 `json:"lat"`
			Lng                *float64 `json:"lng"`
			RoundScoreInPoints float64  `json:"roundScoreInPoints"`
		} `json:"guesses"`
	} `json:"player"`
}

type nextData struct {
	Props struct {
		PageProps struct {
			Game json.RawMessage `json:"game"`
		} `json:"pageProps"`
	} `json:"props"`
}

var mapsXSSIPrefix = []byte(`)]}'`)

// Extract returns zero or more facts from one intercepted body. Never errors;
// irrelevant and malformed payloads yield nil.
func (n *NetworkAdapter) Extract(body []byte) []types.Fact {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	if bytes.HasPrefix(body, mapsXSSIPrefix) {
		return n.extractMapMeta(bytes.TrimPrefix(body, mapsXSSIPrefix))
	}

	var game gamePayload
	if err := json.Unmarshal(body, &game); err == nil && len(game.Rounds) > 0 && game.Token != "" {
		return n.extractGame(game, types.RankGameAPI)
	}

	var nd nextData
	if err := json.Unmarshal(body, &nd); err == nil && len(nd.Props.PageProps.Game) > 0 {
		var embedded gamePayload
		if err := json.Unmarshal(nd.Props.PageProps.Game, &embedded); err == nil && len(embedded.Rounds) > 0 {
			return n.extractGame(embedded, types.RankEmbeddedData)
		}
	}

	return nil
}

func (n *NetworkAdapter) extractGame(game gamePayload, rank types.SourceRank) []types.Fact {
	var facts []types.Fact

	for i, round := range game.Rounds {
		hint := i + 1
		if round.Lat != nil && round.Lng != nil {
			if coord, ok := types.NewCoordinate(*round.Lat, *round.Lng); ok {
				facts = append(facts, types.Fact{
					Kind:       types.FactCoordinate,
					Rank:       rank,
					RoundHint:  hint,
					Coordinate: coord,
				})
			}
		}
		if round.PanoID != "" {
			facts = append(facts, types.Fact{
				Kind:       types.FactPanoramaID,
				Rank:       rank,
				RoundHint:  hint,
				PanoramaID: round.PanoID,
			})
			facts = append(facts, types.Fact{
				Kind:      types.FactCameraPose,
				Rank:      rank,
				RoundHint: hint,
				Camera:    types.CameraPose{Heading: round.Heading, Pitch: round.Pitch, Zoom: round.Zoom},
			})
		}
	}

	for i, guess := range game.Player.Guesses {
		hint := i + 1
		if guess.Lat != nil && guess.Lng != nil {
			if coord, ok := types.NewCoordinate(*guess.Lat, *guess.Lng); ok {
				facts = append(facts, types.Fact{
					Kind:       types.FactGuessCoordinate,
					Rank:       rank,
					RoundHint:  hint,
					Coordinate: coord,
				})
			}
		}
		facts = append(facts, types.Fact{
			Kind:      types.FactScore,
			Rank:      rank,
			RoundHint: hint,
			Score:     guess.RoundScoreInPoints,
		})
	}

	return facts
}

var isoCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

// extractMapMeta walks the map provider's positional-array metadata looking
// for a country code and the panorama's coordinate. The format is unversioned
// nested arrays, so this is a bounded structural scan, not a schema decode.
func (n *NetworkAdapter) extractMapMeta(body []byte) []types.Fact {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}

	var facts []types.Fact

	if code := findCountryCode(root, 0); code != "" {
		facts = append(facts, types.Fact{
			Kind:        types.FactCountryCodeHint,
			Rank:        types.RankMapMeta,
			CountryCode: code,
			CountryName: CountryName(code),
		})
	}
	if coord, ok := findCoordinatePair(root, 0); ok {
		facts = append(facts, types.Fact{
			Kind:       types.FactCoordinate,
			Rank:       types.RankMapMeta,
			Coordinate: coord,
		})
	}

	return facts
}

const maxMetaDepth = 12

func findCountryCode(node any, depth int) string {
	if depth > maxMetaDepth {
		return ""
	}
	arr, ok := node.([]any)
	if !ok {
		return ""
	}
	for _, item := range arr {
		switch v := item.(type) {
		case string:
			if isoCodePattern.MatchString(v) && knownCode(v) {
				return v
			}
		case []any:
			if code := findCountryCode(v, depth+1); code != "" {
				return code
			}
		}
	}
	return ""
}

// findCoordinatePair looks for a [lat, lng] pair: two adjacent floats in valid
// ranges where at least one has real precision (filters version/size pairs).
func findCoordinatePair(node any, depth int) (types.Coordinate, bool) {
	if depth > maxMetaDepth {
		return types.Coordinate{}, false
	}
	arr, ok := node.([]any)
	if !ok {
		return types.Coordinate{}, false
	}
	if len(arr) == 2 {
		lat, latOK := arr[0].(float64)
		lng, lngOK := arr[1].(float64)
		if latOK && lngOK && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 &&
			(hasFraction(lat) || hasFraction(lng)) {
			if coord, ok := types.NewCoordinate(lat, lng); ok {
				return coord, true
			}
		}
	}
	for _, item := range arr {
		if child, ok := item.([]any); ok {
			if coord, found := findCoordinatePair(child, depth+1); found {
				return coord, true
			}
		}
	}
	return types.Coordinate{}, false
}

func hasFraction(v float64) bool {
	return v != float64(int64(v))
}

func knownCode(code string) bool {
	_, ok := countryByName[strings.ToLower(CountryName(code))]
	return ok || canonicalName[code] != ""
}
