// Package clue turns the difference between two resolved countries into an
// ordered list of human-readable study clues.
package clue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// Synthesize diffs the actual country against the guessed one. Pure and
// deterministic: identical inputs always yield the identical clue list.
// Returns nil exactly when the two countries match by name. When they differ,
// the list is never empty; an internal failure degrades to a single generic
// clue naming the actual country.
func Synthesize(actual, guess types.CountryFact, overview *types.OverviewData) (clues []types.Clue) {
	if actual.Country == guess.Country {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			clues = []types.Clue{fallbackClue(actual)}
		}
	}()

	clues = synthesize(actual, guess, overview)
	if len(clues) == 0 {
		clues = []types.Clue{fallbackClue(actual)}
	}
	return clues
}

func synthesize(actual, guess types.CountryFact, overview *types.OverviewData) []types.Clue {
	var clues []types.Clue

	actualEnrich := enrichmentOrUnknown(actual.Enrichment)
	guessEnrich := enrichmentOrUnknown(guess.Enrichment)

	// Fixed emission order; each block only fires on a real difference.
	// Unknown-vs-Unknown (or Unknown on either side) is not a difference.
	if types.Known(actualEnrich.DrivingSide) && types.Known(guessEnrich.DrivingSide) &&
		!strings.EqualFold(actualEnrich.DrivingSide, guessEnrich.DrivingSide) {
		clues = append(clues, types.Clue{
			Category: types.ClueDrivingSide,
			Text: fmt.Sprintf("%s drives on the %s, while %s drives on the %s.",
				actual.Country, strings.ToLower(actualEnrich.DrivingSide),
				guess.Country, strings.ToLower(guessEnrich.DrivingSide)),
		})
	}

	if len(actualEnrich.Languages) > 0 && !sameLanguageSet(actualEnrich.Languages, guessEnrich.Languages) {
		clues = append(clues, types.Clue{
			Category: types.ClueLanguage,
			Text: fmt.Sprintf("Signs in %s are in %s, not %s.",
				actual.Country, joinLanguages(actualEnrich.Languages), languagesOrNone(guessEnrich.Languages)),
		})
	}

	if types.Known(actualEnrich.TLD) && types.Known(guessEnrich.TLD) &&
		actualEnrich.TLD != guessEnrich.TLD {
		clues = append(clues, types.Clue{
			Category: types.ClueTLD,
			Text: fmt.Sprintf("Local URLs end in %s (%s uses %s).",
				actualEnrich.TLD, guess.Country, guessEnrich.TLD),
		})
	}

	if overview != nil {
		if overview.Region != "" {
			clues = append(clues, types.Clue{
				Category: types.ClueRegion,
				Text:     fmt.Sprintf("The round was in %s, %s.", overview.Region, actual.Country),
			})
		}
		if overview.CoverageType != "" {
			clues = append(clues, types.Clue{
				Category: types.ClueCoverageType,
				Text:     fmt.Sprintf("Coverage here is %s; note the camera quality.", overview.CoverageType),
			})
		}
	}

	if len(clues) < 2 {
		clues = append(clues, types.Clue{
			Category: types.ClueGeneral,
			Text:     fmt.Sprintf("Pay attention to signage, road markings and plates to separate %s from %s.", actual.Country, guess.Country),
		})
	}

	return clues
}

func fallbackClue(actual types.CountryFact) types.Clue {
	name := actual.Country
	if name == "" {
		name = "the actual country"
	}
	return types.Clue{
		Category: types.ClueGeneral,
		Text:     fmt.Sprintf("Review distinguishing features of %s.", name),
	}
}

func enrichmentOrUnknown(e *types.EnrichmentData) *types.EnrichmentData {
	if e == nil {
		return types.NewUnknownEnrichment()
	}
	return e
}

// sameLanguageSet compares as sets: order-independent, case-insensitive.
func sameLanguageSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	na := normalizeLanguages(a)
	nb := normalizeLanguages(b)
	for i := range na {
		if na[i] != nb[i] {
			return false
		}
	}
	return true
}

func normalizeLanguages(langs []string) []string {
	out := make([]string, len(langs))
	for i, l := range langs {
		out[i] = strings.ToLower(strings.TrimSpace(l))
	}
	sort.Strings(out)
	return out
}

func joinLanguages(langs []string) string {
	switch len(langs) {
	case 0:
		return "an unknown language"
	case 1:
		return langs[0]
	case 2:
		return langs[0] + " and " + langs[1]
	default:
		return strings.Join(langs[:len(langs)-1], ", ") + " and " + langs[len(langs)-1]
	}
}

func languagesOrNone(langs []string) string {
	if len(langs) == 0 {
		return "the language you guessed"
	}
	return joinLanguages(langs)
}
