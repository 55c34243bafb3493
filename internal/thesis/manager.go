// Package thesis implements the lifecycle of investment theses: creation
// with hypotheses and kill criteria, evidence-driven hypothesis status,
// kill criterion evaluation, and the aggregate signal verdict.
package thesis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/store"
)

// Manager coordinates thesis lifecycle operations against the store.
type Manager struct {
	store store.Store
	cfg   config.HypothesisConfig
}

// NewManager creates a Manager.
func NewManager(st store.Store, cfg config.HypothesisConfig) *Manager {
	return &Manager{store: st, cfg: cfg}
}

// CreateInput bundles a thesis with its initial hypotheses and kill
// criteria. A thesis without at least one hypothesis and one kill
// criterion is not falsifiable and is rejected.
type CreateInput struct {
	Thesis       model.Thesis
	Hypotheses   []model.Hypothesis
	KillCriteria []model.KillCriterion
	// Replace closes any existing active thesis for the company as
	// superseded before creating the new version.
	Replace bool
}

// Create opens a new thesis version for the given company ticker.
func (m *Manager) Create(ctx context.Context, ticker string, in CreateInput) (*model.Thesis, error) {
	if len(in.Hypotheses) == 0 {
		return nil, eris.Wrap(model.ErrValidation, "thesis: at least one hypothesis is required")
	}
	if len(in.KillCriteria) == 0 {
		return nil, eris.Wrap(model.ErrValidation, "thesis: at least one kill criterion is required")
	}

	company, err := m.store.GetCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if in.Replace {
		active, err := m.store.ActiveThesis(ctx, company.ID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			if err := m.Close(ctx, active.ID, model.ThesisClosed, model.CloseReasonSuperseded); err != nil {
				return nil, err
			}
		}
	}

	th := in.Thesis
	th.CompanyID = company.ID
	created, err := m.store.CreateThesis(ctx, &th)
	if err != nil {
		return nil, err
	}

	for i := range in.Hypotheses {
		h := in.Hypotheses[i]
		h.ThesisID = created.ID
		if _, err := m.store.CreateHypothesis(ctx, &h); err != nil {
			return nil, err
		}
	}
	for i := range in.KillCriteria {
		k := in.KillCriteria[i]
		k.ThesisID = created.ID
		if _, err := m.store.CreateKillCriterion(ctx, &k); err != nil {
			return nil, err
		}
	}

	snapshot, err := json.Marshal(created)
	if err != nil {
		return nil, eris.Wrap(err, "thesis: marshal snapshot")
	}
	if err := m.store.LogDecision(ctx, &model.Decision{
		CompanyID:    company.ID,
		ThesisID:     created.ID,
		DecisionType: model.DecisionThesisCreated,
		DecisionText: "opened " + string(created.PositionType) + " thesis v" + strconv.Itoa(created.Version),
		Rationale:    created.VariantEdge,
		Snapshot:     snapshot,
	}); err != nil {
		return nil, err
	}

	zap.L().Info("thesis created",
		zap.String("ticker", company.Ticker),
		zap.String("thesis_id", created.ID),
		zap.Int("version", created.Version),
		zap.Int("hypotheses", len(in.Hypotheses)),
		zap.Int("kill_criteria", len(in.KillCriteria)))
	return created, nil
}

// Close moves a thesis to a terminal status and retires its open
// hypotheses as superseded. Evidence trails and triggered criteria are
// left untouched.
func (m *Manager) Close(ctx context.Context, thesisID string, status model.ThesisStatus, reason model.CloseReason) error {
	if err := m.store.CloseThesis(ctx, thesisID, status, reason, time.Now().UTC()); err != nil {
		return err
	}

	hyps, err := m.store.ListHypotheses(ctx, thesisID)
	if err != nil {
		return err
	}
	for _, h := range hyps {
		if h.Status.Terminal() {
			continue
		}
		if err := m.store.UpdateHypothesis(ctx, h.ID, model.HypothesisSuperseded, h.Confidence); err != nil {
			return err
		}
	}

	th, err := m.store.GetThesis(ctx, thesisID)
	if err != nil {
		return err
	}
	if err := m.store.LogDecision(ctx, &model.Decision{
		CompanyID:    th.CompanyID,
		ThesisID:     thesisID,
		DecisionType: model.DecisionThesisClosed,
		DecisionText: "closed thesis v" + strconv.Itoa(th.Version) + ": " + string(reason),
	}); err != nil {
		return err
	}

	zap.L().Info("thesis closed",
		zap.String("thesis_id", thesisID),
		zap.String("status", string(status)),
		zap.String("reason", string(reason)))
	return nil
}

