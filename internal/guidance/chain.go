// Package guidance maintains the append-only revision chain of management
// guidance per (company, metric) and classifies each new record against
// the chain head.
package guidance

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/store"
)

// Chain records and reads guidance revision chains.
type Chain struct {
	store store.Store
	cfg   config.GuidanceConfig
}

// NewChain creates a Chain backed by the given store.
func NewChain(st store.Store, cfg config.GuidanceConfig) *Chain {
	return &Chain{store: st, cfg: cfg}
}

// RecordInput is one observed guidance statement.
type RecordInput struct {
	Metric     string
	ValueLow   float64
	ValueHigh  float64
	Unit       string
	Period     string
	Withdrawn  bool
	SourceDate time.Time
}

// Result reports what recording a guidance statement did.
type Result struct {
	Record *model.GuidanceRecord
	// Inserted is false when the statement duplicated the chain head
	// exactly and nothing was written.
	Inserted bool
	// Alert is true when the revision magnitude crossed the alert
	// threshold and a decision-log entry was written.
	Alert bool
}

// Record classifies a guidance statement against the current chain head
// for (company, metric) and appends it. A statement identical to the
// head in range and source date is a no-op; an identical range with a
// newer date is recorded as confirmed.
func (c *Chain) Record(ctx context.Context, companyID string, in RecordInput) (*Result, error) {
	head, err := c.store.GuidanceHead(ctx, companyID, in.Metric)
	if err != nil {
		return nil, err
	}

	rec := &model.GuidanceRecord{
		CompanyID:  companyID,
		MetricName: in.Metric,
		ValueLow:   in.ValueLow,
		ValueHigh:  in.ValueHigh,
		Unit:       in.Unit,
		Period:     in.Period,
		SourceDate: in.SourceDate,
	}

	switch {
	case in.Withdrawn:
		if head != nil && head.Qualifier == model.GuidanceWithdrawn && sameDay(in.SourceDate, head.SourceDate) {
			// Re-recording the same day's withdrawal is a no-op.
			return &Result{Record: head, Inserted: false}, nil
		}
		rec.Qualifier = model.GuidanceWithdrawn
	case head == nil || head.Qualifier == model.GuidanceWithdrawn:
		// First statement for the metric, or the first one after a
		// withdrawal, starts a fresh baseline.
		rec.Qualifier = model.GuidanceIntroduced
	default:
		sameRange := rec.ValueLow == head.ValueLow && rec.ValueHigh == head.ValueHigh
		if sameRange && sameDay(rec.SourceDate, head.SourceDate) {
			return &Result{Record: head, Inserted: false}, nil
		}
		pct := 0.0
		if oldMid := head.Midpoint(); oldMid != 0 {
			pct = (rec.Midpoint() - oldMid) / oldMid * 100
		}
		rec.RevisionPct = &pct
		switch {
		case math.Abs(pct) < c.cfg.MaterialityPct:
			rec.Qualifier = model.GuidanceConfirmed
		case pct > 0:
			rec.Qualifier = model.GuidanceRaised
		default:
			rec.Qualifier = model.GuidanceLowered
		}
	}

	if head != nil {
		rec.Supersedes = &head.ID
	}

	inserted, err := c.store.InsertGuidance(ctx, rec)
	if err != nil {
		return nil, err
	}

	res := &Result{Record: inserted, Inserted: true}
	if inserted.RevisionPct != nil && math.Abs(*inserted.RevisionPct) >= c.cfg.AlertPct {
		res.Alert = true
	}
	if res.Alert || inserted.Qualifier == model.GuidanceWithdrawn {
		if err := c.logRevision(ctx, companyID, inserted); err != nil {
			return nil, err
		}
	}

	zap.L().Info("guidance recorded",
		zap.String("company_id", companyID),
		zap.String("metric", inserted.MetricName),
		zap.String("qualifier", string(inserted.Qualifier)),
		zap.Float64p("revision_pct", inserted.RevisionPct),
		zap.Bool("alert", res.Alert))
	return res, nil
}

func (c *Chain) logRevision(ctx context.Context, companyID string, rec *model.GuidanceRecord) error {
	snapshot, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "guidance: marshal snapshot")
	}
	text := "guidance " + string(rec.Qualifier) + " for " + rec.MetricName
	return c.store.LogDecision(ctx, &model.Decision{
		CompanyID:    companyID,
		DecisionType: model.DecisionGuidanceRevision,
		DecisionText: text,
		Snapshot:     snapshot,
	})
}

// History returns the revision chain for (company, metric) ordered head
// first, walking the supersedes links and verifying they form a single
// unbroken chain.
func (c *Chain) History(ctx context.Context, companyID, metric string) ([]model.GuidanceRecord, error) {
	records, err := c.store.ListGuidance(ctx, companyID, metric)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	byID := make(map[string]model.GuidanceRecord, len(records))
	superseded := make(map[string]bool, len(records))
	for _, r := range records {
		byID[r.ID] = r
		if r.Supersedes != nil {
			superseded[*r.Supersedes] = true
		}
	}

	var head *model.GuidanceRecord
	for _, r := range records {
		if !superseded[r.ID] {
			if head != nil {
				return nil, eris.Wrapf(model.ErrInvariantViolation, "guidance: multiple chain heads for %s", metric)
			}
			r := r
			head = &r
		}
	}
	if head == nil {
		return nil, eris.Wrapf(model.ErrInvariantViolation, "guidance: cyclic chain for %s", metric)
	}

	chain := make([]model.GuidanceRecord, 0, len(records))
	for cur := head; cur != nil; {
		chain = append(chain, *cur)
		if len(chain) > len(records) {
			return nil, eris.Wrapf(model.ErrInvariantViolation, "guidance: cyclic chain for %s", metric)
		}
		if cur.Supersedes == nil {
			break
		}
		prev, ok := byID[*cur.Supersedes]
		if !ok {
			return nil, eris.Wrapf(model.ErrInvariantViolation, "guidance: broken chain at %s", cur.ID)
		}
		cur = &prev
	}
	if len(chain) != len(records) {
		return nil, eris.Wrapf(model.ErrInvariantViolation, "guidance: orphaned records for %s", metric)
	}
	return chain, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
