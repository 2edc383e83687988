package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Source resolves a historical USD price for a feed at a millisecond
// timestamp. found is false when the market has no data for that day.
type Source interface {
	HistoricalPrice(ctx context.Context, feedID string, ts int64) (price decimal.Decimal, found bool, err error)
}

// HTTPSource fetches daily historical prices from a coingecko-style
// `/coins/{id}/history` endpoint. Requests pass through a rate limiter so a
// cold cache cannot exhaust the provider quota.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPSource builds a source for the given API base URL. requestsPerSec
// bounds outbound request rate; values <= 0 fall back to 1 req/s.
func NewHTTPSource(baseURL, apiKey string, requestsPerSec float64, timeout time.Duration) *HTTPSource {
	if requestsPerSec <= 0 {
		requestsPerSec = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
	}
}

type historyResponse struct {
	MarketData *struct {
		CurrentPrice map[string]json.Number `json:"current_price"`
	} `json:"market_data"`
}

// HistoricalPrice performs a single rate-limited history request.
func (s *HTTPSource) HistoricalPrice(ctx context.Context, feedID string, ts int64) (decimal.Decimal, bool, error) {
	if feedID == "" {
		return decimal.Zero, false, fmt.Errorf("feed id is required")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return decimal.Zero, false, err
	}

	day := time.UnixMilli(ts).UTC().Format("02-01-2006")
	endpoint := fmt.Sprintf("%s/coins/%s/history", s.baseURL, url.PathEscape(feedID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("build price request: %w", err)
	}
	query := req.URL.Query()
	query.Set("date", day)
	query.Set("localization", "false")
	req.URL.RawQuery = query.Encode()
	if s.apiKey != "" {
		req.Header.Set("x-api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return decimal.Zero, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, false, fmt.Errorf("price request status %d", resp.StatusCode)
	}

	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, false, fmt.Errorf("decode price response: %w", err)
	}
	if payload.MarketData == nil {
		return decimal.Zero, false, nil
	}
	raw, ok := payload.MarketData.CurrentPrice["usd"]
	if !ok {
		return decimal.Zero, false, nil
	}

	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("parse price %q: %w", raw.String(), err)
	}
	return price, true, nil
}
