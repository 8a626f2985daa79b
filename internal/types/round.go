package types

import (
	"fmt"
	"time"
)

// RoundKey identifies one round of one game session. Opaque to everything but
// MakeRoundKey; stable for the duration of the round.
type RoundKey string

// MakeRoundKey builds the key from a session identifier and 1-based round
// number. The same (session, round) pair always yields the same key no matter
// which adapter supplied the round number.
func MakeRoundKey(sessionID string, roundNumber int) RoundKey {
	return RoundKey(fmt.Sprintf("%s/r%d", sessionID, roundNumber))
}

// LifecycleState is the round state machine position.
type LifecycleState int

const (
	StateIdle LifecycleState = iota
	StateAwaitingLocation
	StateActiveRound
	StateRoundEnded
	StateCardPending
	StateCardResolved
)

func (s LifecycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingLocation:
		return "awaiting_location"
	case StateActiveRound:
		return "active_round"
	case StateRoundEnded:
		return "round_ended"
	case StateCardPending:
		return "card_pending"
	case StateCardResolved:
		return "card_resolved"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CameraPose is the panorama view parameters captured from the game API.
type CameraPose struct {
	Heading float64 `json:"heading"`
	Pitch   float64 `json:"pitch"`
	Zoom    float64 `json:"zoom"`
}

// ActualFacts is the ground-truth side of a round.
type ActualFacts struct {
	Location     *Coordinate  `json:"location,omitempty"`
	LocationRank SourceRank   `json:"location_rank"`
	PanoramaID   string       `json:"panorama_id,omitempty"`
	PanoramaRank SourceRank   `json:"panorama_rank"`
	Camera       *CameraPose  `json:"camera,omitempty"`
	Country      *CountryFact `json:"country,omitempty"`
}

// GuessFacts is the player side of a round.
type GuessFacts struct {
	Location     *Coordinate  `json:"location,omitempty"`
	LocationRank SourceRank   `json:"location_rank"`
	Country      *CountryFact `json:"country,omitempty"`
}

// OverviewData is supplementary region/coverage metadata for the actual
// location, used by the clue synthesizer when available.
type OverviewData struct {
	Region       string `json:"region,omitempty"`
	CoverageType string `json:"coverage_type,omitempty"`
}

// RoundRecord is the single accumulated record for one round. It is owned by
// the round store; collaborators receive snapshots, never the live pointer.
type RoundRecord struct {
	Key      RoundKey       `json:"key"`
	State    LifecycleState `json:"state"`
	Actual   ActualFacts    `json:"actual"`
	Guess    GuessFacts     `json:"guess"`
	Score    *float64       `json:"score,omitempty"`
	Clues    []Clue         `json:"clues,omitempty"`
	Overview *OverviewData  `json:"overview,omitempty"`

	UserClueText      string `json:"user_clue_text,omitempty"`
	CardCreated       bool   `json:"card_created"`
	UserCancelledCard bool   `json:"user_cancelled_card"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Completed reports whether both sides of the record have a resolved country.
func (r *RoundRecord) Completed() bool {
	return r.Actual.Country != nil && r.Guess.Country != nil
}
