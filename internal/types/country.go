package types

import "strings"

// UnknownValue is the sentinel for enrichment fields the upstream service could
// not supply. Downstream diffing must treat Unknown-vs-Unknown as "no difference".
const UnknownValue = "Unknown"

// SourceRank orders fact provenance. Higher wins; a fact of strictly lower rank
// never overwrites an incumbent fact on the same field.
type SourceRank int

const (
	RankNone SourceRank = iota
	RankDOMText
	RankMapMeta
	RankEmbeddedData
	RankGameAPI
	RankOverride
)

func (r SourceRank) String() string {
	switch r {
	case RankDOMText:
		return "dom_text"
	case RankMapMeta:
		return "map_meta"
	case RankEmbeddedData:
		return "embedded_data"
	case RankGameAPI:
		return "game_api"
	case RankOverride:
		return "override"
	default:
		return "none"
	}
}

// EnrichmentData carries per-country metadata used for clue generation and the
// card back. Every field is individually optional; absent values hold
// UnknownValue (or an empty slice for Languages).
type EnrichmentData struct {
	TLD         string   `json:"tld"`
	DrivingSide string   `json:"driving_side"`
	Languages   []string `json:"languages"`
	Currency    string   `json:"currency"`
	Continent   string   `json:"continent"`
	Capital     string   `json:"capital"`
	FlagURL     string   `json:"flag_url"`
}

// NewUnknownEnrichment returns enrichment with every field set to the Unknown
// sentinel, used when the enrichment service fails.
func NewUnknownEnrichment() *EnrichmentData {
	return &EnrichmentData{
		TLD:         UnknownValue,
		DrivingSide: UnknownValue,
		Languages:   nil,
		Currency:    UnknownValue,
		Continent:   UnknownValue,
		Capital:     UnknownValue,
		FlagURL:     "",
	}
}

// Known reports whether v carries actual information.
func Known(v string) bool {
	return v != "" && !strings.EqualFold(v, UnknownValue)
}

// CountryFact is one side's resolved country plus provenance.
type CountryFact struct {
	Country     string          `json:"country"`
	CountryCode string          `json:"country_code,omitempty"`
	Locality    string          `json:"locality,omitempty"`
	Enrichment  *EnrichmentData `json:"enrichment,omitempty"`
	Provenance  SourceRank      `json:"provenance"`
}
