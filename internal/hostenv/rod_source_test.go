package hostenv

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

func TestOptionsDefaults(t *testing.T) {
	src := NewRodSource(nil, Options{}, slog.Default())

	assert.Equal(t, "geoguessr.com", src.opts.HostURLSubstring)
	assert.Equal(t, time.Second, src.opts.PollInterval)
	assert.Equal(t, 250*time.Millisecond, src.opts.MutationInterval)
	assert.Equal(t, types.DefaultSelectorConfig(), src.opts.Selectors)
	assert.NotEmpty(t, src.opts.BodyURLFilters)
}

func TestBodyURLFilter(t *testing.T) {
	src := NewRodSource(nil, Options{}, slog.Default())

	assert.True(t, src.wantBody("https://www.geoguessr.com/api/v3/games/AbCd123"))
	assert.True(t, src.wantBody("https://maps.googleapis.com/maps/api/js/GeoPhotoService.SingleImageSearch?pb=..."))
	assert.True(t, src.wantBody("https://www.geoguessr.com/_next/data/build/game/AbCd123.json"))
	assert.False(t, src.wantBody("https://www.geoguessr.com/static/app.css"))
	assert.False(t, src.wantBody("https://analytics.example.com/collect"))
}

func TestExplicitFiltersReplaceDefaults(t *testing.T) {
	src := NewRodSource(nil, Options{BodyURLFilters: []string{"/custom/"}}, slog.Default())

	assert.True(t, src.wantBody("https://host/custom/endpoint"))
	assert.False(t, src.wantBody("https://www.geoguessr.com/api/v3/games/x"))
}
