package signal

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

func TestURLAdapterParse(t *testing.T) {
	adapter := NewURLAdapter()

	tests := []struct {
		name string
		url  string
		want URLFacts
	}{
		{
			"classic game",
			"https://www.geoguessr.com/game/AbCdEf123",
			URLFacts{InGame: true, GameToken: "AbCdEf123"},
		},
		{
			"challenge link",
			"https://www.geoguessr.com/challenge/xYz-9",
			URLFacts{InGame: true, GameToken: "xYz-9"},
		},
		{
			"round in query",
			"https://www.geoguessr.com/game/AbCdEf123?round=4",
			URLFacts{InGame: true, GameToken: "AbCdEf123", RoundNumber: 4},
		},
		{
			"duels withholds ground truth",
			"https://www.geoguessr.com/duels/abc123",
			URLFacts{ExcludedMode: true},
		},
		{
			"battle royale excluded",
			"https://www.geoguessr.com/battle-royale/abc123",
			URLFacts{ExcludedMode: true},
		},
		{
			"not a game page",
			"https://www.geoguessr.com/maps/world",
			URLFacts{},
		},
		{
			"bare path",
			"/game/Tok3n?round=2",
			URLFacts{InGame: true, GameToken: "Tok3n", RoundNumber: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.Parse(types.URLSnapshot{Raw: tt.url})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityResolverIdempotent(t *testing.T) {
	r := NewIdentityResolver(slog.Default())
	facts := URLFacts{InGame: true, GameToken: "tok", RoundNumber: 2}

	k1, ok := r.Resolve(facts, 0)
	require.True(t, ok)
	k2, ok := r.Resolve(facts, 2)
	require.True(t, ok)
	assert.Equal(t, k1, k2, "same (session, round) resolves to the same key")
}

func TestIdentityResolverURLBeatsDOM(t *testing.T) {
	r := NewIdentityResolver(slog.Default())

	urlKey, ok := r.Resolve(URLFacts{InGame: true, GameToken: "tok", RoundNumber: 3}, 2)
	require.True(t, ok)
	domKey, ok := r.Resolve(URLFacts{InGame: true, GameToken: "tok", RoundNumber: 0}, 3)
	require.True(t, ok)
	assert.Equal(t, urlKey, domKey, "URL round 3 and DOM round 3 are the same round")
}

func TestIdentityResolverFallsBackToLastRound(t *testing.T) {
	r := NewIdentityResolver(slog.Default())

	k1, _ := r.Resolve(URLFacts{InGame: true, GameToken: "tok"}, 2)
	// Mid-transition tick: neither URL nor DOM knows the round number.
	k2, _ := r.Resolve(URLFacts{InGame: true, GameToken: "tok"}, 0)
	assert.Equal(t, k1, k2)
}

func TestIdentityResolverNewTokenNewSession(t *testing.T) {
	r := NewIdentityResolver(slog.Default())

	k1, _ := r.Resolve(URLFacts{InGame: true, GameToken: "tok-a", RoundNumber: 1}, 0)
	k2, _ := r.Resolve(URLFacts{InGame: true, GameToken: "tok-b", RoundNumber: 1}, 0)
	assert.NotEqual(t, k1, k2, "concurrent sessions must not collide")

	_, ok := r.Resolve(URLFacts{}, 0)
	assert.False(t, ok)
}
