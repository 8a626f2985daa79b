package types

// ClueCategory buckets generated clues for ordering and mnemonic selection.
type ClueCategory int

const (
	ClueGeneral ClueCategory = iota
	ClueDrivingSide
	ClueLanguage
	ClueTLD
	ClueRegion
	ClueCoverageType
)

func (c ClueCategory) String() string {
	switch c {
	case ClueDrivingSide:
		return "driving_side"
	case ClueLanguage:
		return "language"
	case ClueTLD:
		return "tld"
	case ClueRegion:
		return "region"
	case ClueCoverageType:
		return "coverage_type"
	default:
		return "general"
	}
}

// Clue is one generated distinguishing hint between the actual and guessed
// countries. Clues are machine-generated; user-authored text lives on the
// round record and substitutes for the whole list when present.
type Clue struct {
	Category ClueCategory `json:"category"`
	Text     string       `json:"text"`
}
