package card

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

func rpcServer(t *testing.T, handler func(action string, params json.RawMessage) (any, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Action  string          `json:"action"`
			Version int             `json:"version"`
			Params  json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, rpcVersion, req.Version)

		result, rpcErr := handler(req.Action, req.Params)
		resp := map[string]any{"result": result, "error": nil}
		if rpcErr != "" {
			resp["error"] = rpcErr
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestRPCClientListDecks(t *testing.T) {
	server := rpcServer(t, func(action string, _ json.RawMessage) (any, string) {
		assert.Equal(t, "deckNames", action)
		return []string{"Default", "Geography"}, ""
	})
	defer server.Close()

	c := NewHTTPRPCClient(server.URL, time.Second, slog.Default())
	decks, err := c.ListDecks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Default", "Geography"}, decks)
}

func TestRPCClientAddNote(t *testing.T) {
	server := rpcServer(t, func(action string, params json.RawMessage) (any, string) {
		assert.Equal(t, "addNote", action)
		var p struct {
			Note struct {
				DeckName  string            `json:"deckName"`
				ModelName string            `json:"modelName"`
				Fields    map[string]string `json:"fields"`
			} `json:"note"`
		}
		require.NoError(t, json.Unmarshal(params, &p))
		assert.Equal(t, "Geography", p.Note.DeckName)
		assert.Equal(t, "front text", p.Note.Fields["Front"])
		return int64(1234), ""
	})
	defer server.Close()

	c := NewHTTPRPCClient(server.URL, time.Second, slog.Default())
	noteID, err := c.AddNote(context.Background(), "Geography", "Basic", map[string]string{"Front": "front text", "Back": "back"})
	require.NoError(t, err)
	assert.EqualValues(t, 1234, noteID)
}

func TestRPCClientSurfacesRPCError(t *testing.T) {
	server := rpcServer(t, func(string, json.RawMessage) (any, string) {
		return nil, "deck was not found"
	})
	defer server.Close()

	c := NewHTTPRPCClient(server.URL, time.Second, slog.Default())
	_, err := c.ModelFieldNames(context.Background(), "Basic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deck was not found")
}

func TestRPCClientUnreachable(t *testing.T) {
	c := NewHTTPRPCClient("http://127.0.0.1:1", 200*time.Millisecond, slog.Default())
	_, err := c.ListDecks(context.Background())
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
}
