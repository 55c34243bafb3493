package classify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/store"
)

// Engine runs the full classification pass for a filing: consensus
// lookup, significance scoring, calibration, and persistence.
type Engine struct {
	store store.Store
	cfg   config.ClassifyConfig
}

// NewEngine creates an Engine.
func NewEngine(st store.Store, cfg config.ClassifyConfig) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// Request carries one filing's extracted content into classification.
type Request struct {
	FilingType       model.FilingType
	FilingDate       time.Time
	Findings         []model.Finding
	MaterialChange   bool
	Relationship     model.ConsensusRelationship
	ContrarianThesis string
}

// Outcome pairs the persisted classification with the findings the
// scorer rejected.
type Outcome struct {
	Classification *model.Classification
	Rejected       []model.RejectedFinding
}

// Classify scores a filing for a company and persists the result. A
// company with no stored analyst coverage is classified without
// consensus calibration rather than rejected.
func (e *Engine) Classify(ctx context.Context, ticker string, req Request) (*Outcome, error) {
	company, err := e.store.GetCompany(ctx, ticker)
	if err != nil {
		return nil, err
	}

	strength := 0.0
	known := false
	if snap, err := e.store.LatestRatings(ctx, company.ID); err != nil {
		return nil, err
	} else if snap != nil {
		strength, known = ConsensusStrength(snap.Counts)
	}

	raw, rejected := Significance(SignificanceInput{
		Findings:               req.Findings,
		MaterialChangeDetected: req.MaterialChange,
		FilingType:             req.FilingType,
		PrimaryWatchlist:       company.WatchlistPriority == model.WatchlistPrimary,
	}, e.cfg)

	res := Calibrate(CalibrationInput{
		RawScore:          raw,
		ConsensusStrength: strength,
		ConsensusKnown:    known,
		Relationship:      req.Relationship,
		ContrarianThesis:  req.ContrarianThesis,
		EventDate:         req.FilingDate,
		NextEarningsDate:  company.NextEarningsDate,
	}, e.cfg)

	classification := &model.Classification{
		CompanyID:         company.ID,
		FilingType:        req.FilingType,
		FilingDate:        req.FilingDate,
		RawScore:          res.RawScore,
		CalibratedScore:   res.CalibratedScore,
		UrgencyTier:       res.UrgencyTier,
		ReportType:        res.ReportType,
		ContrarianThesis:  res.ContrarianThesis,
		ConsensusStrength: res.ConsensusStrength,
		ConsensusMissing:  res.ConsensusMissing,
		Dampener:          res.Dampener,
		RejectedFindings:  len(rejected),
	}
	saved, err := e.store.SaveClassification(ctx, classification)
	if err != nil {
		return nil, err
	}

	zap.L().Info("filing classified",
		zap.String("ticker", company.Ticker),
		zap.String("filing_type", string(req.FilingType)),
		zap.Float64("raw_score", res.RawScore),
		zap.Float64("calibrated_score", res.CalibratedScore),
		zap.String("urgency_tier", string(res.UrgencyTier)),
		zap.String("report_type", string(res.ReportType)),
		zap.Int("rejected_findings", len(rejected)))
	return &Outcome{Classification: saved, Rejected: rejected}, nil
}
