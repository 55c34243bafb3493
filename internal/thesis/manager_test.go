package thesis

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/store"
)

func newTestManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	_, err = st.UpsertCompany(context.Background(), &model.Company{Ticker: "ACME"})
	require.NoError(t, err)

	cfg := config.HypothesisConfig{
		DisproveThreshold:     2,
		ConfidenceStepFor:     10,
		ConfidenceStepAgainst: 10,
	}
	return NewManager(st, cfg), st
}

func basicCreateInput() CreateInput {
	return CreateInput{
		Thesis: model.Thesis{
			PositionType:   model.PositionOwn,
			OurView:        "services attach rate is the story",
			MarketView:     "hardware peaked",
			VariantEdge:    "channel checks show attach accelerating",
			ConfidenceBull: 30,
			ConfidenceBase: 50,
			ConfidenceBear: 20,
		},
		Hypotheses: []model.Hypothesis{
			{Text: "attach rate exceeds 40% by Q4", Confidence: 60},
		},
		KillCriteria: []model.KillCriterion{
			{MetricName: "gross_margin", ThresholdValue: 40, Operator: model.OpLess, Category: model.KillThesisBreak},
		},
	}
}

func TestCreateRequiresHypothesisAndKillCriterion(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	in := basicCreateInput()
	in.Hypotheses = nil
	_, err := m.Create(ctx, "ACME", in)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrValidation))

	in = basicCreateInput()
	in.KillCriteria = nil
	_, err = m.Create(ctx, "ACME", in)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrValidation))
}

func TestCreateWiresChildrenAndLogsDecision(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)
	assert.Equal(t, 1, th.Version)

	hyps, err := st.ListHypotheses(ctx, th.ID)
	require.NoError(t, err)
	assert.Len(t, hyps, 1)

	kills, err := st.ListKillCriteria(ctx, th.ID, false)
	require.NoError(t, err)
	assert.Len(t, kills, 1)

	decisions, err := st.ListDecisions(ctx, th.CompanyID, 10)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.DecisionThesisCreated, decisions[0].DecisionType)
}

func TestCreateSecondActiveRejectedUnlessReplace(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)

	_, err = m.Create(ctx, "ACME", basicCreateInput())
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrDuplicateActiveThesis))

	in := basicCreateInput()
	in.Replace = true
	second, err := m.Create(ctx, "ACME", in)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	old, err := st.GetThesis(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ThesisClosed, old.Status)
	assert.Equal(t, model.CloseReasonSuperseded, old.CloseReason)
}

func TestCloseRetiresOpenHypotheses(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, th.ID, model.ThesisClosed, model.CloseReasonPlayedOut))

	hyps, err := st.ListHypotheses(ctx, th.ID)
	require.NoError(t, err)
	require.Len(t, hyps, 1)
	assert.Equal(t, model.HypothesisSuperseded, hyps[0].Status)
}

func TestAddEvidenceLadder(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)
	hyps, err := m.store.ListHypotheses(ctx, th.ID)
	require.NoError(t, err)
	hID := hyps[0].ID

	add := func(dir model.EvidenceDirection) *EvidenceOutcome {
		out, err := m.AddEvidence(ctx, hID, model.Evidence{
			Direction:  dir,
			Summary:    "entry",
			SourceDate: time.Now(),
		})
		require.NoError(t, err)
		return out
	}

	out := add(model.EvidenceFor)
	assert.Equal(t, model.HypothesisStrengthened, out.Hypothesis.Status)
	assert.InDelta(t, 70, out.Hypothesis.Confidence, 1e-9)

	out = add(model.EvidenceAgainst)
	assert.Equal(t, model.HypothesisWeakened, out.Hypothesis.Status)
	assert.InDelta(t, 60, out.Hypothesis.Confidence, 1e-9)

	// For-evidence recovers a weakened hypothesis to active, not
	// straight to strengthened.
	out = add(model.EvidenceFor)
	assert.Equal(t, model.HypothesisActive, out.Hypothesis.Status)
}

func TestConsecutiveAgainstDisproves(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)
	hyps, err := m.store.ListHypotheses(ctx, th.ID)
	require.NoError(t, err)
	hID := hyps[0].ID

	out, err := m.AddEvidence(ctx, hID, model.Evidence{Direction: model.EvidenceAgainst, Summary: "miss one", SourceDate: time.Now()})
	require.NoError(t, err)
	assert.False(t, out.Disproved)

	out, err = m.AddEvidence(ctx, hID, model.Evidence{Direction: model.EvidenceAgainst, Summary: "miss two", SourceDate: time.Now()})
	require.NoError(t, err)
	assert.True(t, out.Disproved)
	assert.Equal(t, model.HypothesisDisproved, out.Hypothesis.Status)

	// Terminal hypotheses reject further evidence.
	_, err = m.AddEvidence(ctx, hID, model.Evidence{Direction: model.EvidenceFor, Summary: "late save", SourceDate: time.Now()})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvariantViolation))
}

func TestInterveningForResetsAgainstRun(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)
	hyps, err := m.store.ListHypotheses(ctx, th.ID)
	require.NoError(t, err)
	hID := hyps[0].ID

	for _, dir := range []model.EvidenceDirection{model.EvidenceAgainst, model.EvidenceFor, model.EvidenceAgainst} {
		out, err := m.AddEvidence(ctx, hID, model.Evidence{Direction: dir, Summary: "entry", SourceDate: time.Now()})
		require.NoError(t, err)
		assert.False(t, out.Disproved)
	}
}

func TestSupersedeHypothesis(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)
	hyps, err := st.ListHypotheses(ctx, th.ID)
	require.NoError(t, err)

	replacement, err := m.Supersede(ctx, hyps[0].ID, model.Hypothesis{
		Text:       "attach rate exceeds 35% by Q2 next year",
		Confidence: 55,
	})
	require.NoError(t, err)
	assert.Equal(t, th.ID, replacement.ThesisID)

	old, err := st.GetHypothesis(ctx, hyps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.HypothesisSuperseded, old.Status)

	_, err = m.Supersede(ctx, old.ID, model.Hypothesis{Text: "again", Confidence: 50})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvariantViolation))
}
