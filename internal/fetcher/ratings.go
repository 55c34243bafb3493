// Package fetcher pulls analyst rating distributions from a market-data
// provider over HTTP and imports them from spreadsheet exports.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
)

// RatingsClient fetches analyst coverage snapshots with rate limiting
// and retry.
type RatingsClient struct {
	client     *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
	maxRetries int
}

// NewRatingsClient creates a client from config.
func NewRatingsClient(cfg config.MarketDataConfig) *RatingsClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "thesis-cli/1.0"
	}
	return &RatingsClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), int(math.Max(1, rps))),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  userAgent,
		maxRetries: 3,
	}
}

// ratingsPayload is the provider's wire format.
type ratingsPayload struct {
	Ticker     string `json:"ticker"`
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
	AsOf       string `json:"as_of"`
}

// Fetch returns the current rating distribution for a ticker.
func (c *RatingsClient) Fetch(ctx context.Context, ticker string) (model.RatingCounts, time.Time, error) {
	var counts model.RatingCounts
	if c.baseURL == "" {
		return counts, time.Time{}, eris.New("fetcher: market data base_url is not configured")
	}
	url := fmt.Sprintf("%s/v1/ratings/%s", c.baseURL, strings.ToUpper(strings.TrimSpace(ticker)))

	body, err := c.getWithRetry(ctx, url)
	if err != nil {
		return counts, time.Time{}, err
	}

	var payload ratingsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return counts, time.Time{}, eris.Wrap(err, "fetcher: decode ratings")
	}

	counts = model.RatingCounts{
		StrongBuy:  payload.StrongBuy,
		Buy:        payload.Buy,
		Hold:       payload.Hold,
		Sell:       payload.Sell,
		StrongSell: payload.StrongSell,
	}
	if err := counts.Validate(); err != nil {
		return model.RatingCounts{}, time.Time{}, err
	}

	asOf := time.Now().UTC()
	if payload.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", payload.AsOf)
		if err != nil {
			return model.RatingCounts{}, time.Time{}, eris.Wrapf(err, "fetcher: parse as_of %q", payload.AsOf)
		}
		asOf = parsed
	}
	return counts, asOf, nil
}

func (c *RatingsClient) getWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: build request")
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("ratings request failed, retrying",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			backoff(ctx, attempt)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return nil, eris.Wrap(readErr, "fetcher: read body")
			}
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = eris.Errorf("fetcher: status %d from %s", resp.StatusCode, url)
			zap.L().Warn("ratings request retryable failure",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			backoff(ctx, attempt)
		case resp.StatusCode == http.StatusNotFound:
			return nil, eris.Wrapf(model.ErrNotFound, "ratings for %s", url)
		default:
			return nil, eris.Errorf("fetcher: status %d from %s", resp.StatusCode, url)
		}
	}
	return nil, eris.Wrapf(lastErr, "fetcher: giving up after %d attempts", c.maxRetries)
}

// backoff sleeps with exponential delay and jitter, respecting ctx.
func backoff(ctx context.Context, attempt int) {
	delay := time.Duration(math.Pow(2, float64(attempt))) * 500 * time.Millisecond
	delay += time.Duration(rand.Int64N(int64(250 * time.Millisecond)))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
