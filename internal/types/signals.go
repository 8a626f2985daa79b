package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FactKind names what a normalized fact carries.
type FactKind int

const (
	FactCoordinate FactKind = iota
	FactPanoramaID
	FactCameraPose
	FactGuessCoordinate
	FactScore
	FactCountryCodeHint
	FactAddressText
	FactRoundNumber
	FactRoundEnded
)

func (k FactKind) String() string {
	switch k {
	case FactCoordinate:
		return "coordinate"
	case FactPanoramaID:
		return "panorama_id"
	case FactCameraPose:
		return "camera_pose"
	case FactGuessCoordinate:
		return "guess_coordinate"
	case FactScore:
		return "score"
	case FactCountryCodeHint:
		return "country_code_hint"
	case FactAddressText:
		return "address_text"
	case FactRoundNumber:
		return "round_number"
	case FactRoundEnded:
		return "round_ended"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Fact is one normalized observation from one source. RoundHint is the 1-based
// round number the source believes the fact belongs to; 0 means the source had
// no opinion and the fact attaches to the current round.
type Fact struct {
	Kind      FactKind
	Rank      SourceRank
	RoundHint int

	Coordinate  Coordinate
	PanoramaID  string
	Camera      CameraPose
	Score       float64
	CountryCode string
	CountryName string
	Text        string
}

// Digest returns a stable identity for at-least-once dedup: the same fact
// delivered twice (e.g. by both the poller and the mutation observer) digests
// identically regardless of arrival order.
func (f Fact) Digest() string {
	h := sha256.Sum256(fmt.Appendf(nil, "%d|%d|%d|%s|%s|%.3f|%s|%s|%s|%.1f,%.1f,%.1f",
		f.Kind, f.Rank, f.RoundHint, f.Coordinate.Key(), f.PanoramaID, f.Score,
		f.CountryCode, f.CountryName, f.Text, f.Camera.Heading, f.Camera.Pitch, f.Camera.Zoom))
	return hex.EncodeToString(h[:12])
}

// URLSnapshot is the host page location at one observation instant.
type URLSnapshot struct {
	Raw string
}

// DOMObservation is one concept's extracted element state. Hidden elements
// (offsetParent == null on the host side) must be delivered as Visible=false
// and are treated as absent.
type DOMObservation struct {
	Text    string
	Visible bool
}

// DOMSnapshot maps concept name to the first matching observation, in selector
// rank order, at one instant. Concepts with no match are simply absent.
type DOMSnapshot map[string]DOMObservation

// DOM concept names shared between the selector config and the adapters.
const (
	ConceptRoundNumber  = "round_number"
	ConceptResultBanner = "result_banner"
	ConceptAddressText  = "address_text"
)

// SelectorConfig maps a DOM concept to its ranked list of CSS selectors.
// Injected configuration: selector churn in the host app must never require
// touching merge or lifecycle logic.
type SelectorConfig map[string][]string

// DefaultSelectorConfig covers the host app's current markup. Order matters;
// the first visible match per concept wins.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		ConceptRoundNumber: {
			`div[class^="status_inner"] div[data-qa="round-number"]`,
			`div[class^="status_section"] div[class^="status_value"]`,
		},
		ConceptResultBanner: {
			`div[class^="round-result_wrapper"]`,
			`div[data-qa="result-view-top"]`,
			`div[class^="result-layout_root"]`,
		},
		ConceptAddressText: {
			`div[class^="result-overlay_overlayContent"] h2`,
			`div[data-qa="correct-location-banner"]`,
			`div[class^="standard-final-result_wrapper"] h1`,
		},
	}
}
