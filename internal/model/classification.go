package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// UrgencyTier is the delivery-priority bucket for a classification.
type UrgencyTier string

const (
	UrgencyImmediate   UrgencyTier = "immediate"
	UrgencyDailyDigest UrgencyTier = "daily_digest"
	UrgencyWeekly      UrgencyTier = "weekly_rollup"
)

// ReportType is the narrative framing of an event, distinct from urgency.
type ReportType string

const (
	ReportContrarianAlert  ReportType = "contrarian_alert"
	ReportEarningsBriefing ReportType = "earnings_briefing"
	ReportFilingUpdate     ReportType = "filing_update"
)

// ConsensusRelationship describes how the filing as a whole relates to
// street consensus.
type ConsensusRelationship string

const (
	RelationshipConfirms   ConsensusRelationship = "confirms"
	RelationshipChallenges ConsensusRelationship = "challenges"
	RelationshipNeutral    ConsensusRelationship = "neutral"
)

// ParseConsensusRelationship validates a raw relationship string.
func ParseConsensusRelationship(s string) (ConsensusRelationship, error) {
	switch ConsensusRelationship(strings.ToLower(strings.TrimSpace(s))) {
	case RelationshipConfirms:
		return RelationshipConfirms, nil
	case RelationshipChallenges:
		return RelationshipChallenges, nil
	case RelationshipNeutral, "":
		return RelationshipNeutral, nil
	default:
		return "", eris.Wrapf(ErrValidation, "classification: unknown consensus relationship %q", s)
	}
}

// Classification is the immutable result of classifying one filing or
// event. Consumed by the delivery and report-rendering collaborators.
type Classification struct {
	ID                string      `json:"id"`
	CompanyID         string      `json:"company_id"`
	FilingType        FilingType  `json:"filing_type"`
	FilingDate        time.Time   `json:"filing_date"`
	RawScore          float64     `json:"raw_score"`
	CalibratedScore   float64     `json:"calibrated_score"`
	UrgencyTier       UrgencyTier `json:"urgency_tier"`
	ReportType        ReportType  `json:"report_type"`
	ContrarianThesis  string      `json:"contrarian_thesis,omitempty"`
	ConsensusStrength *float64    `json:"consensus_strength,omitempty"`
	ConsensusMissing  bool        `json:"consensus_missing,omitempty"`
	Dampener          float64     `json:"dampener"`
	RejectedFindings  int         `json:"rejected_findings"`
	CreatedAt         time.Time   `json:"created_at"`
}
