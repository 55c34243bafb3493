package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
)

func newRatingsServer(t *testing.T, handler http.HandlerFunc) *RatingsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRatingsClient(config.MarketDataConfig{
		BaseURL:        srv.URL,
		RequestsPerSec: 100,
		TimeoutSecs:    5,
	})
}

func TestFetchRatings(t *testing.T) {
	c := newRatingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ratings/ACME", r.URL.Path)
		w.Write([]byte(`{"ticker":"ACME","strong_buy":4,"buy":4,"hold":0,"sell":0,"strong_sell":0,"as_of":"2026-02-01"}`))
	})

	counts, asOf, err := c.Fetch(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, model.RatingCounts{StrongBuy: 4, Buy: 4}, counts)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), asOf)
}

func TestFetchRatingsRetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	c := newRatingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"strong_buy":1,"buy":2,"hold":3,"sell":0,"strong_sell":0}`))
	})

	counts, _, err := c.Fetch(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 6, counts.Total())
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchRatingsNotFound(t *testing.T) {
	c := newRatingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, _, err := c.Fetch(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestFetchRatingsRejectsNegativeCounts(t *testing.T) {
	c := newRatingsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"strong_buy":-1}`))
	})

	_, _, err := c.Fetch(context.Background(), "ACME")
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrValidation))
}
