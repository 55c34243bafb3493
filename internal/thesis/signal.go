package thesis

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/model"
)

// SignalVerdict is the aggregate read on a thesis after an evaluation
// pass over its hypotheses and kill criteria.
type SignalVerdict string

const (
	VerdictUnchanged    SignalVerdict = "unchanged"
	VerdictStrengthened SignalVerdict = "strengthened"
	VerdictWeakened     SignalVerdict = "weakened"
	VerdictInvalidated  SignalVerdict = "invalidated"
)

// Signal summarizes one evaluation pass.
type Signal struct {
	ThesisID     string              `json:"thesis_id"`
	Verdict      SignalVerdict       `json:"verdict"`
	Strengthened int                 `json:"strengthened"`
	Weakened     int                 `json:"weakened"`
	Disproved    int                 `json:"disproved"`
	Triggers     []model.KillTrigger `json:"triggers,omitempty"`
	// Closed is true when the verdict invalidated the thesis and it was
	// closed as thesis_broken.
	Closed bool `json:"closed"`
}

// GuidanceImpact maps a material guidance revision onto a signal
// contribution for the given position. Raised guidance strengthens an
// own thesis and weakens a short; lowered is the inverse. Withdrawn
// guidance weakens any position. Confirmed and introduced statements
// carry no tilt.
func GuidanceImpact(position model.PositionType, qualifier model.GuidanceQualifier) SignalVerdict {
	switch qualifier {
	case model.GuidanceWithdrawn:
		return VerdictWeakened
	case model.GuidanceRaised:
		if position == model.PositionShort {
			return VerdictWeakened
		}
		return VerdictStrengthened
	case model.GuidanceLowered:
		if position == model.PositionShort {
			return VerdictStrengthened
		}
		return VerdictWeakened
	default:
		return VerdictUnchanged
	}
}

// EvaluateSignal computes the verdict for a thesis from its current
// hypothesis statuses and any kill triggers from this pass, logs it, and
// closes the thesis when a stop-loss or thesis-break trigger fired.
func (m *Manager) EvaluateSignal(ctx context.Context, thesisID string, triggers []model.KillTrigger) (*Signal, error) {
	return m.EvaluateSignalWithGuidance(ctx, thesisID, triggers, nil)
}

// EvaluateSignalWithGuidance additionally counts material guidance
// revisions from this pass into the verdict.
func (m *Manager) EvaluateSignalWithGuidance(ctx context.Context, thesisID string, triggers []model.KillTrigger, revisions []model.GuidanceRecord) (*Signal, error) {
	th, err := m.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if th.Terminal() {
		return nil, eris.Wrapf(model.ErrAlreadyClosed, "thesis %s", thesisID)
	}

	hyps, err := m.store.ListHypotheses(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	sig := &Signal{ThesisID: thesisID, Triggers: triggers}
	for _, h := range hyps {
		switch h.Status {
		case model.HypothesisStrengthened:
			sig.Strengthened++
		case model.HypothesisWeakened:
			sig.Weakened++
		case model.HypothesisDisproved:
			sig.Disproved++
		}
	}

	var tilt int
	for _, rev := range revisions {
		switch GuidanceImpact(th.PositionType, rev.Qualifier) {
		case VerdictStrengthened:
			sig.Strengthened++
			tilt++
		case VerdictWeakened:
			sig.Weakened++
			tilt--
		}
	}

	sig.Verdict = verdict(sig.Strengthened, sig.Weakened, sig.Disproved, triggers)
	// Hypothesis statuses take precedence; guidance tilt only breaks an
	// otherwise unchanged read.
	if sig.Verdict == VerdictUnchanged && tilt < 0 {
		sig.Verdict = VerdictWeakened
	}

	if sig.Verdict == VerdictInvalidated {
		if err := m.Close(ctx, thesisID, model.ThesisInvalidated, model.CloseReasonThesisBroken); err != nil {
			return nil, err
		}
		sig.Closed = true
	}

	snapshot, err := json.Marshal(sig)
	if err != nil {
		return nil, eris.Wrap(err, "thesis: marshal signal")
	}
	if err := m.store.LogDecision(ctx, &model.Decision{
		CompanyID:    th.CompanyID,
		ThesisID:     thesisID,
		DecisionType: model.DecisionSignalVerdict,
		DecisionText: "signal verdict: " + string(sig.Verdict),
		Snapshot:     snapshot,
	}); err != nil {
		return nil, err
	}

	zap.L().Info("signal evaluated",
		zap.String("thesis_id", thesisID),
		zap.String("verdict", string(sig.Verdict)),
		zap.Int("strengthened", sig.Strengthened),
		zap.Int("weakened", sig.Weakened),
		zap.Int("disproved", sig.Disproved),
		zap.Int("triggers", len(triggers)))
	return sig, nil
}

// verdict applies the precedence order: a fatal kill trigger invalidates
// outright, disproved hypotheses outnumbering strengthened ones weaken,
// a clear strengthened majority strengthens, anything else is unchanged.
func verdict(strengthened, weakened, disproved int, triggers []model.KillTrigger) SignalVerdict {
	for _, tr := range triggers {
		if tr.Category == model.KillStopLoss || tr.Category == model.KillThesisBreak {
			return VerdictInvalidated
		}
	}
	if disproved > strengthened {
		return VerdictWeakened
	}
	if strengthened > disproved+weakened {
		return VerdictStrengthened
	}
	return VerdictUnchanged
}
