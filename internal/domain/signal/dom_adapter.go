package signal

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

var roundNumberPattern = regexp.MustCompile(`(\d+)\s*/\s*\d+`)

// DOMAdapter turns a DOM snapshot into normalized facts. It owns no selector
// knowledge; the snapshot is already keyed by concept (the host source applies
// the injected SelectorConfig). Pure function of the snapshot.
type DOMAdapter struct{}

func NewDOMAdapter() *DOMAdapter {
	return &DOMAdapter{}
}

// Extract emits zero or more facts from one DOM snapshot. Hidden observations
// are treated as absent; malformed text is dropped silently.
func (d *DOMAdapter) Extract(snapshot types.DOMSnapshot) []types.Fact {
	var facts []types.Fact

	if n, ok := d.RoundNumber(snapshot); ok {
		facts = append(facts, types.Fact{
			Kind:      types.FactRoundNumber,
			Rank:      types.RankDOMText,
			RoundHint: n,
		})
	}

	if obs, ok := snapshot[types.ConceptResultBanner]; ok && obs.Visible {
		facts = append(facts, types.Fact{
			Kind: types.FactRoundEnded,
			Rank: types.RankDOMText,
		})
	}

	if obs, ok := snapshot[types.ConceptAddressText]; ok && obs.Visible {
		text := strings.TrimSpace(obs.Text)
		if text != "" {
			fact := types.Fact{
				Kind: types.FactAddressText,
				Rank: types.RankDOMText,
				Text: text,
			}
			if name, code, ok := MatchCountry(text); ok {
				fact.CountryName = name
				fact.CountryCode = code
			}
			facts = append(facts, fact)
		}
	}

	return facts
}

// RoundNumber reads the round counter concept ("3 / 5", "Round 3 of 5").
func (d *DOMAdapter) RoundNumber(snapshot types.DOMSnapshot) (int, bool) {
	obs, ok := snapshot[types.ConceptRoundNumber]
	if !ok || !obs.Visible {
		return 0, false
	}
	text := strings.TrimSpace(obs.Text)
	if m := roundNumberPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n, true
		}
	}
	// Counter sometimes renders the current round alone during transitions.
	if n, err := strconv.Atoi(text); err == nil && n > 0 && n <= 50 {
		return n, true
	}
	return 0, false
}

// RoundEnded reports whether any round-end marker is currently visible.
func (d *DOMAdapter) RoundEnded(snapshot types.DOMSnapshot) bool {
	obs, ok := snapshot[types.ConceptResultBanner]
	return ok && obs.Visible
}
