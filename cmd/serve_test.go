package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	testCfg := &config.Config{
		Classify: config.ClassifyConfig{
			PointsHighNewInfo:    15,
			PointsHighPricedIn:   3,
			PointsMaterialChange: 15,
			Points8K:             15,
			PointsPeriodic:       5,
			PointsPrimaryWatch:   5,
			DampenThreshold:      0.6,
			DampenSlope:          0.6,
			ContrarianBoost:      30,
			TierDailyDigest:      30,
			TierImmediate:        60,
			EarningsHorizonDays:  14,
		},
		Guidance: config.GuidanceConfig{MaterialityPct: 2, AlertPct: 15},
	}
	return newAPIRouter(st, testCfg), st
}

func TestServeHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeActiveThesisNotFound(t *testing.T) {
	router, st := newTestRouter(t)

	_, err := st.UpsertCompany(context.Background(), &model.Company{Ticker: "ACME"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/companies/ACME/thesis", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeUnknownCompany(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/companies/NOPE/thesis", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeClassifyEndpoint(t *testing.T) {
	router, st := newTestRouter(t)

	_, err := st.UpsertCompany(context.Background(), &model.Company{Ticker: "ACME"})
	require.NoError(t, err)

	payload := `{
		"ticker": "ACME",
		"filing_type": "8-K",
		"material_change": true,
		"findings": [
			{"description": "guidance cut", "materiality": "high", "consensus_status": "new_information"}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Classification model.Classification `json:"classification"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	// high/new_info 15 + material change 15 + 8-K 15, no coverage so no dampening
	assert.InDelta(t, 45, resp.Classification.RawScore, 0.001)
	assert.True(t, resp.Classification.ConsensusMissing)
}

func TestServeClassifyRejectsMissingTicker(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
