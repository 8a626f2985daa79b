package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/plonkdeck/plonkdeck/internal/types"
)

// Enricher looks up per-country metadata by ISO code.
type Enricher interface {
	Enrich(ctx context.Context, countryCode string) (*types.EnrichmentData, error)
}

// HTTPEnricher talks to a REST-Countries-style endpoint. Country metadata is
// immutable on gameplay timescales, so responses are cached by code.
type HTTPEnricher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache
	logger  *slog.Logger
}

func NewHTTPEnricher(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPEnricher {
	return &HTTPEnricher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		cache:   cache.New(12*time.Hour, 1*time.Hour),
		logger:  logger,
	}
}

type restCountry struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	TLD []string `json:"tld"`
	Car struct {
		Side string `json:"side"`
	} `json:"car"`
	Languages  map[string]string `json:"languages"`
	Currencies map[string]struct {
		Name string `json:"name"`
	} `json:"currencies"`
	Region    string   `json:"region"`
	Subregion string   `json:"subregion"`
	Capital   []string `json:"capital"`
	Flags     struct {
		PNG string `json:"png"`
	} `json:"flags"`
}

func (e *HTTPEnricher) Enrich(ctx context.Context, countryCode string) (*types.EnrichmentData, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if len(code) != 2 {
		return nil, fmt.Errorf("enricher: bad country code %q", countryCode)
	}

	if cached, found := e.cache.Get(code); found {
		data := *(cached.(*types.EnrichmentData))
		return &data, nil
	}

	var data *types.EnrichmentData
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		data, err = e.fetch(ctx, code)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cache.Set(code, data, cache.DefaultExpiration)
	out := *data
	return &out, nil
}

func (e *HTTPEnricher) fetch(ctx context.Context, code string) (*types.EnrichmentData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/alpha/"+code, nil)
	if err != nil {
		return nil, fmt.Errorf("building enrichment request: %w", err)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("enricher rate limit: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: enricher returned %d", types.ErrServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading enrichment response: %v", types.ErrServiceUnavailable, err)
	}

	// The endpoint returns either a single object or a one-element list.
	var country restCountry
	if err := json.Unmarshal(body, &country); err != nil {
		var list []restCountry
		if err := json.Unmarshal(body, &list); err != nil || len(list) == 0 {
			return nil, fmt.Errorf("%w: malformed enrichment response", types.ErrServiceUnavailable)
		}
		country = list[0]
	}

	return country.toEnrichment(), nil
}

func (c restCountry) toEnrichment() *types.EnrichmentData {
	data := types.NewUnknownEnrichment()

	if len(c.TLD) > 0 && c.TLD[0] != "" {
		data.TLD = c.TLD[0]
	}
	if c.Car.Side != "" {
		data.DrivingSide = c.Car.Side
	}
	if len(c.Languages) > 0 {
		langs := make([]string, 0, len(c.Languages))
		for _, name := range c.Languages {
			langs = append(langs, name)
		}
		sort.Strings(langs)
		data.Languages = langs
	}
	if len(c.Currencies) > 0 {
		codes := make([]string, 0, len(c.Currencies))
		for code := range c.Currencies {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		if name := c.Currencies[codes[0]].Name; name != "" {
			data.Currency = name
		}
	}
	if c.Region != "" {
		data.Continent = c.Region
	}
	if len(c.Capital) > 0 && c.Capital[0] != "" {
		data.Capital = c.Capital[0]
	}
	data.FlagURL = c.Flags.PNG

	return data
}
