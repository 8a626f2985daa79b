package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/plonkdeck/plonkdeck/internal/metrics"
	"github.com/plonkdeck/plonkdeck/internal/types"
)

// ReverseGeocoder resolves a coordinate to a country. Implementations are
// best-effort: a timeout or malformed response yields an error, never a
// fabricated fact.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, coord types.Coordinate) (*GeocodeResult, error)
}

// GeocodeResult is the usable slice of a reverse-geocoding response.
type GeocodeResult struct {
	Country     string
	CountryCode string
	Locality    string
}

// HTTPGeocoder talks to a Nominatim-style reverse endpoint. Calls are
// rate-limited client-side; the public instances ban heavier traffic.
type HTTPGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewHTTPGeocoder(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *HTTPGeocoder {
	return &HTTPGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		logger:    logger,
	}
}

type nominatimResponse struct {
	Address struct {
		Country      string `json:"country"`
		CountryCode  string `json:"country_code"`
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		State        string `json:"state"`
	} `json:"address"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (g *HTTPGeocoder) ReverseGeocode(ctx context.Context, coord types.Coordinate) (*GeocodeResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocoder rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", coord.Lat))
	q.Set("lon", fmt.Sprintf("%f", coord.Lng))
	q.Set("format", "jsonv2")
	q.Set("zoom", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building geocoder request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		// Public Nominatim instances reject anonymous clients.
		req.Header.Set("User-Agent", g.userAgent)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.GeocodeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: geocoder returned %d", types.ErrServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading geocoder response: %v", types.ErrServiceUnavailable, err)
	}

	var parsed nominatimResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed geocoder response: %v", types.ErrServiceUnavailable, err)
	}
	if parsed.Error != "" || parsed.Address.Country == "" {
		return nil, fmt.Errorf("%w: no country for %s", types.ErrServiceUnavailable, coord.Key())
	}

	locality := parsed.Address.City
	for _, candidate := range []string{parsed.Address.Town, parsed.Address.Village, parsed.Address.Municipality, parsed.Address.State} {
		if locality != "" {
			break
		}
		locality = candidate
	}

	return &GeocodeResult{
		Country:     parsed.Address.Country,
		CountryCode: strings.ToUpper(parsed.Address.CountryCode),
		Locality:    locality,
	}, nil
}
