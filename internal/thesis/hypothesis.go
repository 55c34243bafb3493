package thesis

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/model"
)

// EvidenceOutcome reports the effect of recording one evidence entry.
type EvidenceOutcome struct {
	Hypothesis *model.Hypothesis
	Previous   model.HypothesisStatus
	Disproved  bool
}

// AddEvidence appends an evidence entry to a hypothesis and moves its
// status. For-evidence strengthens one step; against-evidence weakens
// one step. Enough consecutive against entries with no intervening
// for entry disprove the hypothesis outright. Terminal hypotheses
// reject further evidence.
func (m *Manager) AddEvidence(ctx context.Context, hypothesisID string, e model.Evidence) (*EvidenceOutcome, error) {
	h, err := m.store.GetHypothesis(ctx, hypothesisID)
	if err != nil {
		return nil, err
	}
	if h.Status.Terminal() {
		return nil, eris.Wrapf(model.ErrInvariantViolation,
			"hypothesis %s is %s and no longer accepts evidence", h.ID, h.Status)
	}

	e.HypothesisID = h.ID
	if _, err := m.store.AppendEvidence(ctx, &e); err != nil {
		return nil, err
	}

	prev := h.Status
	next := stepStatus(h.Status, e.Direction)
	confidence := h.Confidence
	if e.Direction == model.EvidenceFor {
		confidence = clamp(confidence+m.cfg.ConfidenceStepFor, 0, 100)
	} else {
		confidence = clamp(confidence-m.cfg.ConfidenceStepAgainst, 0, 100)
	}

	disproved := false
	if e.Direction == model.EvidenceAgainst {
		trail, err := m.store.ListEvidence(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		if consecutiveAgainst(trail) >= m.cfg.DisproveThreshold {
			next = model.HypothesisDisproved
			disproved = true
		}
	}

	if err := m.store.UpdateHypothesis(ctx, h.ID, next, confidence); err != nil {
		return nil, err
	}
	h.Status = next
	h.Confidence = confidence

	zap.L().Info("evidence recorded",
		zap.String("hypothesis_id", h.ID),
		zap.String("direction", string(e.Direction)),
		zap.String("status", string(next)),
		zap.Float64("confidence", confidence))
	return &EvidenceOutcome{Hypothesis: h, Previous: prev, Disproved: disproved}, nil
}

// Supersede retires a hypothesis and registers its replacement under the
// same thesis. The old evidence trail stays attached to the old record.
func (m *Manager) Supersede(ctx context.Context, hypothesisID string, replacement model.Hypothesis) (*model.Hypothesis, error) {
	old, err := m.store.GetHypothesis(ctx, hypothesisID)
	if err != nil {
		return nil, err
	}
	if old.Status.Terminal() {
		return nil, eris.Wrapf(model.ErrInvariantViolation, "hypothesis %s is already %s", old.ID, old.Status)
	}

	if err := m.store.UpdateHypothesis(ctx, old.ID, model.HypothesisSuperseded, old.Confidence); err != nil {
		return nil, err
	}

	replacement.ThesisID = old.ThesisID
	created, err := m.store.CreateHypothesis(ctx, &replacement)
	if err != nil {
		return nil, err
	}

	zap.L().Info("hypothesis superseded",
		zap.String("old_id", old.ID),
		zap.String("new_id", created.ID))
	return created, nil
}

// stepStatus moves one step along the evidence ladder. Disproved and
// superseded never appear here; terminal states are rejected upstream.
func stepStatus(s model.HypothesisStatus, dir model.EvidenceDirection) model.HypothesisStatus {
	if dir == model.EvidenceFor {
		switch s {
		case model.HypothesisWeakened:
			return model.HypothesisActive
		default:
			return model.HypothesisStrengthened
		}
	}
	return model.HypothesisWeakened
}

// consecutiveAgainst counts the run of against entries at the tail of
// the trail.
func consecutiveAgainst(trail []model.Evidence) int {
	n := 0
	for i := len(trail) - 1; i >= 0; i-- {
		if trail[i].Direction != model.EvidenceAgainst {
			break
		}
		n++
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
