package classify

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
)

// CalibrationInput merges the raw significance score with consensus
// context for one event.
type CalibrationInput struct {
	RawScore          float64
	ConsensusStrength float64
	ConsensusKnown    bool
	Relationship      model.ConsensusRelationship
	ContrarianThesis  string
	EventDate         time.Time
	NextEarningsDate  *time.Time
}

// Result is the calibrated classification for one event, before
// persistence fields are attached.
type Result struct {
	RawScore          float64
	CalibratedScore   float64
	Dampener          float64
	UrgencyTier       model.UrgencyTier
	ReportType        model.ReportType
	ContrarianThesis  string
	ConsensusStrength *float64
	ConsensusMissing  bool
}

// Calibrate applies consensus dampening or contrarian boosting to a raw
// significance score and maps the result onto an urgency tier and report
// type.
//
// The dampener is 1 - slope*strength (slope 0.6 by default), applied only
// when the filing confirms or is neutral to a consensus stronger than the
// threshold. The curve reproduces the reference point strength 0.875 →
// multiplier 0.475. When no analysts cover the company the raw score
// passes through unchanged and the result is flagged for review.
func Calibrate(in CalibrationInput, cfg config.ClassifyConfig) Result {
	res := Result{
		RawScore:         in.RawScore,
		CalibratedScore:  in.RawScore,
		Dampener:         1.0,
		ContrarianThesis: strings.TrimSpace(in.ContrarianThesis),
	}

	hasContrarianThesis := res.ContrarianThesis != ""

	if in.ConsensusKnown {
		s := in.ConsensusStrength
		res.ConsensusStrength = &s
	} else {
		res.ConsensusMissing = true
		zap.L().Debug("classify: no analyst coverage, skipping consensus calibration")
	}

	switch {
	case (in.Relationship == model.RelationshipConfirms || in.Relationship == model.RelationshipNeutral) &&
		in.ConsensusKnown && in.ConsensusStrength > cfg.DampenThreshold:
		// The street already believes it; dampen proportionally to how
		// crowded the view is.
		res.Dampener = 1.0 - cfg.DampenSlope*in.ConsensusStrength
		res.CalibratedScore = in.RawScore * res.Dampener

	case in.Relationship == model.RelationshipChallenges && hasContrarianThesis:
		res.CalibratedScore = in.RawScore + cfg.ContrarianBoost
	}

	// Report type. A contrarian alert requires both the challenge signal
	// and a stated thesis; without the thesis text it is not actionable
	// and falls back to a plain filing update.
	earningsNear := withinEarningsHorizon(in.EventDate, in.NextEarningsDate, cfg.EarningsHorizonDays)
	switch {
	case in.Relationship == model.RelationshipChallenges && hasContrarianThesis:
		res.ReportType = model.ReportContrarianAlert
	case earningsNear:
		res.ReportType = model.ReportEarningsBriefing
	default:
		res.ReportType = model.ReportFilingUpdate
	}
	if res.ReportType != model.ReportContrarianAlert {
		res.ContrarianThesis = ""
	}

	res.UrgencyTier = tierFor(res.CalibratedScore, cfg)

	// An earnings briefing ships with the daily digest at minimum: the
	// whole point of the horizon is that the event is imminent.
	if res.ReportType == model.ReportEarningsBriefing && res.UrgencyTier == model.UrgencyWeekly {
		res.UrgencyTier = model.UrgencyDailyDigest
	}

	return res
}

// tierFor maps a calibrated score onto the delivery tier.
func tierFor(score float64, cfg config.ClassifyConfig) model.UrgencyTier {
	switch {
	case score >= cfg.TierImmediate:
		return model.UrgencyImmediate
	case score >= cfg.TierDailyDigest:
		return model.UrgencyDailyDigest
	default:
		return model.UrgencyWeekly
	}
}

// withinEarningsHorizon reports whether the next earnings date falls
// within horizon days of the event date, in either direction.
func withinEarningsHorizon(event time.Time, earnings *time.Time, horizonDays int) bool {
	if earnings == nil || event.IsZero() {
		return false
	}
	days := math.Abs(earnings.Sub(event).Hours() / 24)
	return days <= float64(horizonDays)
}
