package signal

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// IdentityResolver stabilizes "which round is this" across adapters. One game
// token maps to one session id for as long as the token is observed; the round
// number comes from the URL when it has one, else the DOM, else the last
// number seen for the session. Resolve is idempotent for the same inputs.
type IdentityResolver struct {
	logger *slog.Logger

	mu        sync.Mutex
	token     string
	sessionID string
	lastRound int
}

func NewIdentityResolver(logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{logger: logger}
}

// Resolve computes the RoundKey for the current tick. domRound is 0 when the
// DOM had no readable round counter. URL-derived round numbers take precedence
// over DOM-derived ones: the URL changes atomically on navigation, the DOM
// mid-transition can show either round.
func (r *IdentityResolver) Resolve(urlFacts URLFacts, domRound int) (types.RoundKey, bool) {
	if !urlFacts.InGame {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if urlFacts.GameToken != r.token {
		r.token = urlFacts.GameToken
		r.sessionID = uuid.NewString()
		r.lastRound = 0
		r.logger.Info("new game session observed",
			slog.String("session_id", r.sessionID))
	}

	round := urlFacts.RoundNumber
	if round == 0 {
		round = domRound
	}
	if round == 0 {
		round = r.lastRound
	}
	if round == 0 {
		round = 1
	}
	r.lastRound = round

	return types.MakeRoundKey(r.sessionID, round), true
}

// ForRound returns the key a specific round number has within the current
// session, for correlating facts that carry their own round hint. Does not
// advance resolver state.
func (r *IdentityResolver) ForRound(roundNumber int) (types.RoundKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionID == "" {
		return "", false
	}
	if roundNumber == 0 {
		roundNumber = r.lastRound
	}
	if roundNumber == 0 {
		return "", false
	}
	return types.MakeRoundKey(r.sessionID, roundNumber), true
}

// Current returns the key of the round the resolver last settled on, without
// advancing any state.
func (r *IdentityResolver) Current() (types.RoundKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessionID == "" || r.lastRound == 0 {
		return "", false
	}
	return types.MakeRoundKey(r.sessionID, r.lastRound), true
}
