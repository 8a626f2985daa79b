package card

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// RPCClient is the flashcard program's local JSON RPC (AnkiConnect wire
// format: a single POST endpoint taking {action, version, params}).
type RPCClient interface {
	ListDecks(ctx context.Context) ([]string, error)
	CreateDeck(ctx context.Context, name string) error
	ModelFieldNames(ctx context.Context, modelName string) ([]string, error)
	AddNote(ctx context.Context, deckName, modelName string, fields map[string]string) (int64, error)
}

const rpcVersion = 6

type HTTPRPCClient struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func NewHTTPRPCClient(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPRPCClient {
	return &HTTPRPCClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type rpcRequest struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

func (c *HTTPRPCClient) call(ctx context.Context, action string, params any, result any) error {
	payload, err := json.Marshal(rpcRequest{Action: action, Version: rpcVersion, Params: params})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrServiceUnavailable, action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", types.ErrServiceUnavailable, action, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %v", types.ErrServiceUnavailable, action, err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("%w: malformed %s response: %v", types.ErrServiceUnavailable, action, err)
	}
	if parsed.Error != nil && *parsed.Error != "" {
		return fmt.Errorf("%s failed: %s", action, *parsed.Error)
	}
	if result != nil && len(parsed.Result) > 0 {
		if err := json.Unmarshal(parsed.Result, result); err != nil {
			return fmt.Errorf("%w: decoding %s result: %v", types.ErrServiceUnavailable, action, err)
		}
	}
	return nil
}

func (c *HTTPRPCClient) ListDecks(ctx context.Context) ([]string, error) {
	var decks []string
	if err := c.call(ctx, "deckNames", nil, &decks); err != nil {
		return nil, err
	}
	return decks, nil
}

func (c *HTTPRPCClient) CreateDeck(ctx context.Context, name string) error {
	return c.call(ctx, "createDeck", map[string]any{"deck": name}, nil)
}

func (c *HTTPRPCClient) ModelFieldNames(ctx context.Context, modelName string) ([]string, error) {
	var fields []string
	if err := c.call(ctx, "modelFieldNames", map[string]any{"modelName": modelName}, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *HTTPRPCClient) AddNote(ctx context.Context, deckName, modelName string, fields map[string]string) (int64, error) {
	params := map[string]any{
		"note": map[string]any{
			"deckName":  deckName,
			"modelName": modelName,
			"fields":    fields,
			"options":   map[string]any{"allowDuplicate": false},
			"tags":      []string{"plonkdeck"},
		},
	}
	var noteID int64
	if err := c.call(ctx, "addNote", params, &noteID); err != nil {
		return 0, err
	}
	return noteID, nil
}
