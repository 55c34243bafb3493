package classify

import (
	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
)

// SignificanceInput carries everything the raw scorer looks at for one
// filing or event.
type SignificanceInput struct {
	Findings               []model.Finding
	MaterialChangeDetected bool
	FilingType             model.FilingType
	PrimaryWatchlist       bool
}

// Significance computes the raw point total for an event. Malformed
// findings are collected into the rejected list with reasons and skipped;
// one bad finding never aborts the batch. Medium and low materiality
// findings contribute nothing regardless of novelty.
func Significance(in SignificanceInput, cfg config.ClassifyConfig) (float64, []model.RejectedFinding) {
	var score float64
	var rejected []model.RejectedFinding

	for _, f := range in.Findings {
		if err := f.Validate(); err != nil {
			rejected = append(rejected, model.RejectedFinding{Finding: f, Reason: err.Error()})
			continue
		}
		if f.Materiality != model.MaterialityHigh {
			continue
		}
		switch f.ConsensusStatus {
		case model.ConsensusNewInformation:
			score += cfg.PointsHighNewInfo
		case model.ConsensusPricedIn:
			score += cfg.PointsHighPricedIn
		}
	}

	if in.MaterialChangeDetected {
		score += cfg.PointsMaterialChange
	}

	switch in.FilingType {
	case model.Filing8K:
		score += cfg.Points8K
	case model.Filing10Q, model.Filing10K:
		score += cfg.PointsPeriodic
	}

	if in.PrimaryWatchlist {
		score += cfg.PointsPrimaryWatch
	}

	return score, rejected
}
