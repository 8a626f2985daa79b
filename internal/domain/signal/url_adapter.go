package signal

import (
	"regexp"
	"strconv"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// URLFacts is what the location bar alone can tell us about the game.
type URLFacts struct {
	InGame       bool
	ExcludedMode bool
	GameToken    string
	RoundNumber  int // 0 when the URL carries no round number
}

// Ordered URL patterns, first match wins. Classic games and challenge links
// carry per-round ground truth; competitive modes withhold it until game end
// and are excluded from processing entirely.
var (
	gamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^/game/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`^/challenge/([A-Za-z0-9_-]+)`),
	}
	excludedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^/duels/`),
		regexp.MustCompile(`^/battle-royale/`),
		regexp.MustCompile(`^/live-challenge/`),
		regexp.MustCompile(`^/team-duels/`),
	}
	roundPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[?&]round=(\d+)`),
		regexp.MustCompile(`/round/(\d+)`),
	}
	pathPattern = regexp.MustCompile(`^[a-z]+://[^/]+(/[^#]*)`)
)

// URLAdapter parses game identity out of the location string. Stateless.
type URLAdapter struct{}

func NewURLAdapter() *URLAdapter {
	return &URLAdapter{}
}

// Parse extracts URL facts from a raw location string. Unrecognized URLs
// yield the zero value (not in a game).
func (u *URLAdapter) Parse(snapshot types.URLSnapshot) URLFacts {
	path := snapshot.Raw
	if m := pathPattern.FindStringSubmatch(snapshot.Raw); m != nil {
		path = m[1]
	}

	for _, p := range excludedPatterns {
		if p.MatchString(path) {
			return URLFacts{ExcludedMode: true}
		}
	}

	var facts URLFacts
	for _, p := range gamePatterns {
		if m := p.FindStringSubmatch(path); m != nil {
			facts.InGame = true
			facts.GameToken = m[1]
			break
		}
	}
	if !facts.InGame {
		return facts
	}

	for _, p := range roundPatterns {
		if m := p.FindStringSubmatch(path); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				facts.RoundNumber = n
			}
			break
		}
	}
	return facts
}
