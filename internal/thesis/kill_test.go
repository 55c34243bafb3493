package thesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thesis-cli/internal/model"
)

func TestEvaluateKillsBreachAndIdempotence(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	in := basicCreateInput()
	in.KillCriteria = []model.KillCriterion{
		{MetricName: "gross_margin", ThresholdValue: 40, Operator: model.OpLess, Category: model.KillThesisBreak},
		{MetricName: "net_debt_ebitda", ThresholdValue: 4, Operator: model.OpGreater, Category: model.KillReview},
	}
	th, err := m.Create(ctx, "ACME", in)
	require.NoError(t, err)

	obs := map[string]float64{"gross_margin": 38.5, "revenue_growth": -2}
	triggers, err := m.EvaluateKills(ctx, th.ID, obs, time.Now(), "Q2 release")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, "gross_margin", triggers[0].MetricName)
	assert.Equal(t, model.KillThesisBreak, triggers[0].Category)
	assert.InDelta(t, 38.5, triggers[0].ObservedValue, 1e-9)

	// Re-evaluating the same breach yields no new triggers.
	triggers, err = m.EvaluateKills(ctx, th.ID, obs, time.Now(), "Q2 release again")
	require.NoError(t, err)
	assert.Empty(t, triggers)

	decisions, err := st.ListDecisions(ctx, th.CompanyID, 10)
	require.NoError(t, err)
	var killDecisions int
	for _, d := range decisions {
		if d.DecisionType == model.DecisionKillTriggered {
			killDecisions++
		}
	}
	assert.Equal(t, 1, killDecisions)
}

func TestEvaluateKillsNoBreach(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)

	triggers, err := m.EvaluateKills(ctx, th.ID, map[string]float64{"gross_margin": 45}, time.Now(), "")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestAddKillCriterionRejectsClosedThesis(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx, th.ID, model.ThesisClosed, model.CloseReasonManual))

	_, err = m.AddKillCriterion(ctx, th.ID, model.KillCriterion{
		MetricName: "churn", ThresholdValue: 10, Operator: model.OpGreater, Category: model.KillReview,
	})
	require.Error(t, err)
}

func TestSignalVerdicts(t *testing.T) {
	tests := []struct {
		name                             string
		strengthened, weakened, disproved int
		triggers                         []model.KillTrigger
		want                             SignalVerdict
	}{
		{"all quiet", 0, 0, 0, nil, VerdictUnchanged},
		{"strengthened majority", 3, 1, 1, nil, VerdictStrengthened},
		{"disproved outnumber", 1, 0, 2, nil, VerdictWeakened},
		{"balanced mix", 2, 2, 0, nil, VerdictUnchanged},
		{"review trigger alone", 0, 0, 0, []model.KillTrigger{{Category: model.KillReview}}, VerdictUnchanged},
		{"stop loss overrides everything", 5, 0, 0, []model.KillTrigger{{Category: model.KillStopLoss}}, VerdictInvalidated},
		{"thesis break overrides", 5, 0, 0, []model.KillTrigger{{Category: model.KillThesisBreak}}, VerdictInvalidated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := verdict(tt.strengthened, tt.weakened, tt.disproved, tt.triggers)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateSignalInvalidationClosesThesis(t *testing.T) {
	m, st := newTestManager(t)
	ctx := context.Background()

	th, err := m.Create(ctx, "ACME", basicCreateInput())
	require.NoError(t, err)

	triggers, err := m.EvaluateKills(ctx, th.ID, map[string]float64{"gross_margin": 35}, time.Now(), "Q3 miss")
	require.NoError(t, err)
	require.Len(t, triggers, 1)

	sig, err := m.EvaluateSignal(ctx, th.ID, triggers)
	require.NoError(t, err)
	assert.Equal(t, VerdictInvalidated, sig.Verdict)
	assert.True(t, sig.Closed)

	got, err := st.GetThesis(ctx, th.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ThesisInvalidated, got.Status)
	assert.Equal(t, model.CloseReasonThesisBroken, got.CloseReason)

	// A second pass on the closed thesis is rejected.
	_, err = m.EvaluateSignal(ctx, th.ID, nil)
	require.Error(t, err)
}
