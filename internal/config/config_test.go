package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "thesis.db", cfg.Store.SQLitePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.InDelta(t, 15, cfg.Classify.PointsHighNewInfo, 0.001)
	assert.InDelta(t, 3, cfg.Classify.PointsHighPricedIn, 0.001)
	assert.InDelta(t, 0.6, cfg.Classify.DampenThreshold, 0.001)
	assert.InDelta(t, 0.6, cfg.Classify.DampenSlope, 0.001)
	assert.InDelta(t, 30, cfg.Classify.ContrarianBoost, 0.001)
	assert.Equal(t, 30, cfg.Classify.EarningsHorizonDays)

	assert.Equal(t, 2, cfg.Hypothesis.DisproveThreshold)
	assert.InDelta(t, 2.0, cfg.Guidance.MaterialityPct, 0.001)
	assert.InDelta(t, 15.0, cfg.Guidance.AlertPct, 0.001)
	assert.Equal(t, 4, cfg.Monitor.MaxConcurrentCompanies)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/thesis
log:
  level: debug
  format: console
classify:
  earnings_horizon_days: 14
guidance:
  alert_pct: 10
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/thesis", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 14, cfg.Classify.EarningsHorizonDays)
	assert.InDelta(t, 10.0, cfg.Guidance.AlertPct, 0.001)
	// Untouched sections keep defaults.
	assert.Equal(t, 2, cfg.Hypothesis.DisproveThreshold)
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	require.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "console"}))
}
