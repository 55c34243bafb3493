package thesis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/model"
)

// AddKillCriterion attaches a new criterion to an existing thesis.
func (m *Manager) AddKillCriterion(ctx context.Context, thesisID string, k model.KillCriterion) (*model.KillCriterion, error) {
	th, err := m.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if th.Terminal() {
		return nil, eris.Wrapf(model.ErrInvariantViolation, "thesis %s is %s", th.ID, th.Status)
	}
	k.ThesisID = th.ID
	return m.store.CreateKillCriterion(ctx, &k)
}

// EvaluateKills checks every untriggered criterion on a thesis against
// the observed metric values. Criteria whose metric is absent from the
// observations are skipped. Each breach is recorded at most once; a
// criterion that already fired never fires again.
func (m *Manager) EvaluateKills(ctx context.Context, thesisID string, observations map[string]float64, observedDate time.Time, evidence string) ([]model.KillTrigger, error) {
	th, err := m.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	criteria, err := m.store.ListKillCriteria(ctx, thesisID, true)
	if err != nil {
		return nil, err
	}

	var triggers []model.KillTrigger
	for _, k := range criteria {
		observed, ok := observations[k.MetricName]
		if !ok {
			continue
		}
		if !k.Operator.Apply(observed, k.ThresholdValue) {
			continue
		}

		fired, err := m.store.MarkTriggered(ctx, k.ID, observed, observedDate, evidence)
		if err != nil {
			return nil, err
		}
		if !fired {
			continue
		}

		trigger := model.KillTrigger{
			CriterionID:   k.ID,
			ThesisID:      thesisID,
			MetricName:    k.MetricName,
			Category:      k.Category,
			ObservedValue: observed,
			ObservedDate:  observedDate,
		}
		triggers = append(triggers, trigger)

		snapshot, err := json.Marshal(trigger)
		if err != nil {
			return nil, eris.Wrap(err, "thesis: marshal kill trigger")
		}
		if err := m.store.LogDecision(ctx, &model.Decision{
			CompanyID:    th.CompanyID,
			ThesisID:     thesisID,
			DecisionType: model.DecisionKillTriggered,
			DecisionText: fmt.Sprintf("kill criterion %s %s %.4f breached at %.4f",
				k.MetricName, k.Operator, k.ThresholdValue, observed),
			Rationale: evidence,
			Snapshot:  snapshot,
		}); err != nil {
			return nil, err
		}

		zap.L().Warn("kill criterion triggered",
			zap.String("thesis_id", thesisID),
			zap.String("metric", k.MetricName),
			zap.String("category", string(k.Category)),
			zap.Float64("observed", observed),
			zap.Float64("threshold", k.ThresholdValue))
	}
	return triggers, nil
}
