package classify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return NewEngine(st, defaultClassifyConfig()), st
}

func TestEngineClassifyWithConsensus(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	earnings := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	c, err := st.UpsertCompany(ctx, &model.Company{
		Ticker:            "ACME",
		WatchlistPriority: model.WatchlistPrimary,
		NextEarningsDate:  &earnings,
	})
	require.NoError(t, err)
	_, err = st.SaveRatings(ctx, c.ID, model.RatingCounts{StrongBuy: 4, Buy: 4}, time.Now())
	require.NoError(t, err)

	out, err := e.Classify(ctx, "ACME", Request{
		FilingType: model.Filing10Q,
		FilingDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Findings: []model.Finding{
			{Description: "a", Materiality: model.MaterialityHigh, ConsensusStatus: model.ConsensusNewInformation},
			{Description: "b", Materiality: model.MaterialityHigh, ConsensusStatus: model.ConsensusNewInformation},
			{Description: "c", Materiality: model.MaterialityHigh, ConsensusStatus: model.ConsensusPricedIn},
			{Description: "d", Materiality: model.MaterialityMedium, ConsensusStatus: model.ConsensusPricedIn},
		},
		MaterialChange: true,
		Relationship:   model.RelationshipConfirms,
	})
	require.NoError(t, err)

	cl := out.Classification
	assert.InDelta(t, 49, cl.RawScore, 1e-9)
	assert.InDelta(t, 0.475, cl.Dampener, 1e-9)
	assert.InDelta(t, 23.275, cl.CalibratedScore, 1e-9)
	assert.Equal(t, model.UrgencyDailyDigest, cl.UrgencyTier)
	assert.Equal(t, model.ReportEarningsBriefing, cl.ReportType)
	require.NotNil(t, cl.ConsensusStrength)
	assert.InDelta(t, 0.875, *cl.ConsensusStrength, 1e-9)
	assert.False(t, cl.ConsensusMissing)

	// The classification is persisted.
	stored, err := st.ListClassifications(ctx, c.ID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, cl.ID, stored[0].ID)
}

func TestEngineClassifyNoCoverage(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	_, err := st.UpsertCompany(ctx, &model.Company{Ticker: "NOCOV"})
	require.NoError(t, err)

	out, err := e.Classify(ctx, "NOCOV", Request{
		FilingType: model.Filing8K,
		FilingDate: time.Now(),
		Findings: []model.Finding{
			{Description: "a", Materiality: model.MaterialityHigh, ConsensusStatus: model.ConsensusNewInformation},
		},
		Relationship: model.RelationshipConfirms,
	})
	require.NoError(t, err)

	cl := out.Classification
	assert.True(t, cl.ConsensusMissing)
	assert.Nil(t, cl.ConsensusStrength)
	assert.InDelta(t, 1.0, cl.Dampener, 1e-9)
	assert.Equal(t, cl.RawScore, cl.CalibratedScore)
}

func TestEngineClassifyUnknownCompany(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Classify(context.Background(), "ZZZZ", Request{
		FilingType: model.Filing8K,
		FilingDate: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrNotFound))
}

func TestEngineClassifyCountsRejectedFindings(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	_, err := st.UpsertCompany(ctx, &model.Company{Ticker: "ACME"})
	require.NoError(t, err)

	out, err := e.Classify(ctx, "ACME", Request{
		FilingType: model.Filing10K,
		FilingDate: time.Now(),
		Findings: []model.Finding{
			{Description: "ok", Materiality: model.MaterialityHigh, ConsensusStatus: model.ConsensusNewInformation},
			{Description: "bad", Materiality: "critical", ConsensusStatus: model.ConsensusPricedIn},
		},
	})
	require.NoError(t, err)
	assert.Len(t, out.Rejected, 1)
	assert.Equal(t, 1, out.Classification.RejectedFindings)
}
