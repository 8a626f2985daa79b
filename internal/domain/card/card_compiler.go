package card

import (
	"fmt"
	"strings"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// CardContent is the compiled flashcard text. Field names of the target note
// model are an adapter concern (see fields.go); the compiler only emits the
// two logical sides.
type CardContent struct {
	Front string
	Back  string
}

// Overrides carries per-card user choices.
type Overrides struct {
	// IncludeAnswerLink puts the street-view link of the answer on the front.
	// Off by default: the link gives the answer away.
	IncludeAnswerLink bool
	// ClueText, when non-empty, substitutes entirely for generated clues.
	ClueText string
	// Force allows re-creating a card for a round that already has one.
	Force bool
}

const mnemonicMaxRunes = 80

// Compile is a pure transform of a round record into card text. It refuses
// (ErrIncompleteRound) when the actual country is unknown even after all
// fallbacks; a card with fabricated data is worse than no card.
func Compile(record types.RoundRecord, overrides Overrides) (CardContent, error) {
	if record.Actual.Country == nil || record.Actual.Country.Country == "" {
		return CardContent{}, fmt.Errorf("compiling card for %s: %w", record.Key, types.ErrIncompleteRound)
	}

	var front strings.Builder
	front.WriteString("Where was this round?")
	if record.Actual.PanoramaID != "" {
		front.WriteString(fmt.Sprintf("\nPanorama: %s", panoramaLink(record)))
	} else if record.Actual.Location != nil {
		front.WriteString(fmt.Sprintf("\nCoordinates: %.4f, %.4f", record.Actual.Location.Lat, record.Actual.Location.Lng))
	}
	if overrides.IncludeAnswerLink && record.Actual.Location != nil {
		front.WriteString(fmt.Sprintf("\nAnswer map: %s", mapLink(*record.Actual.Location)))
	}

	var back strings.Builder
	back.WriteString(fmt.Sprintf("Actual: %s", describeSide(record.Actual.Country)))
	if record.Guess.Country != nil {
		back.WriteString(fmt.Sprintf("\nGuessed: %s", describeSide(record.Guess.Country)))
	} else {
		back.WriteString("\nGuessed: (no guess recorded)")
	}

	enrich := record.Actual.Country.Enrichment
	if enrich != nil {
		if types.Known(enrich.Continent) {
			back.WriteString(fmt.Sprintf("\nContinent: %s", enrich.Continent))
		}
		if types.Known(enrich.DrivingSide) {
			back.WriteString(fmt.Sprintf("\nDrives on the %s", strings.ToLower(enrich.DrivingSide)))
		}
	}
	if record.Score != nil {
		back.WriteString(fmt.Sprintf("\nScore: %.0f", *record.Score))
	}

	clueText := strings.TrimSpace(overrides.ClueText)
	if clueText == "" {
		clueText = strings.TrimSpace(record.UserClueText)
	}
	if clueText != "" {
		back.WriteString("\n\nNotes:\n" + clueText)
	} else if len(record.Clues) > 0 {
		back.WriteString("\n\nClues:")
		for _, c := range record.Clues {
			back.WriteString("\n- " + c.Text)
		}
	}

	back.WriteString("\n\nRemember: " + mnemonic(record))

	return CardContent{Front: front.String(), Back: back.String()}, nil
}

func describeSide(fact *types.CountryFact) string {
	if fact.Locality != "" && !strings.EqualFold(fact.Locality, fact.Country) {
		return fmt.Sprintf("%s (%s)", fact.Country, fact.Locality)
	}
	return fact.Country
}

// mnemonic picks the single most distinctive clue for a one-liner: driving
// side first, then the leading clue trimmed to a readable length, else a
// generic fallback naming the country.
func mnemonic(record types.RoundRecord) string {
	for _, c := range record.Clues {
		if c.Category == types.ClueDrivingSide {
			return trimRunes(c.Text, mnemonicMaxRunes)
		}
	}
	if len(record.Clues) > 0 {
		return trimRunes(record.Clues[0].Text, mnemonicMaxRunes)
	}
	return fmt.Sprintf("Study the road signs and plates of %s.", record.Actual.Country.Country)
}

func trimRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

func panoramaLink(record types.RoundRecord) string {
	link := fmt.Sprintf("https://www.google.com/maps/@?api=1&map_action=pano&pano=%s", record.Actual.PanoramaID)
	if record.Actual.Camera != nil {
		link += fmt.Sprintf("&heading=%.1f&pitch=%.1f", record.Actual.Camera.Heading, record.Actual.Camera.Pitch)
	}
	return link
}

func mapLink(coord types.Coordinate) string {
	return fmt.Sprintf("https://www.google.com/maps/@%.6f,%.6f,6z", coord.Lat, coord.Lng)
}
