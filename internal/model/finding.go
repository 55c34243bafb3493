package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Materiality grades how much a finding matters to the thesis.
type Materiality string

const (
	MaterialityHigh   Materiality = "high"
	MaterialityMedium Materiality = "medium"
	MaterialityLow    Materiality = "low"
)

// ConsensusStatus describes how a finding relates to what the street
// already believes.
type ConsensusStatus string

const (
	ConsensusPricedIn       ConsensusStatus = "priced_in"
	ConsensusNewInformation ConsensusStatus = "new_information"
	ConsensusConfirmsThesis ConsensusStatus = "confirms_thesis"
)

// FilingType is the SEC form category of the source document.
type FilingType string

const (
	Filing8K    FilingType = "8-K"
	Filing10Q   FilingType = "10-Q"
	Filing10K   FilingType = "10-K"
	FilingOther FilingType = "other"
)

// ParseFilingType maps a raw form string onto the known categories.
// Unknown forms fall into FilingOther rather than erroring: form type only
// affects scoring weight, never control flow.
func ParseFilingType(s string) FilingType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "8-K", "8K":
		return Filing8K
	case "10-Q", "10Q":
		return Filing10Q
	case "10-K", "10K":
		return Filing10K
	default:
		return FilingOther
	}
}

// Finding is a single extracted observation from a filing. Findings are
// produced upstream (extraction collaborator), consumed by the significance
// scorer, and never persisted here.
type Finding struct {
	Description     string          `json:"description"`
	Materiality     Materiality     `json:"materiality"`
	ConsensusStatus ConsensusStatus `json:"consensus_status"`
}

// Validate enforces the fixed enum sets. Findings arrive from a language
// model, so anything outside the known variants is rejected rather than
// coerced.
func (f *Finding) Validate() error {
	switch Materiality(strings.ToLower(string(f.Materiality))) {
	case MaterialityHigh, MaterialityMedium, MaterialityLow:
		f.Materiality = Materiality(strings.ToLower(string(f.Materiality)))
	default:
		return eris.Wrapf(ErrValidation, "finding: unknown materiality %q", f.Materiality)
	}
	switch ConsensusStatus(strings.ToLower(string(f.ConsensusStatus))) {
	case ConsensusPricedIn, ConsensusNewInformation, ConsensusConfirmsThesis:
		f.ConsensusStatus = ConsensusStatus(strings.ToLower(string(f.ConsensusStatus)))
	default:
		return eris.Wrapf(ErrValidation, "finding: unknown consensus status %q", f.ConsensusStatus)
	}
	return nil
}

// RejectedFinding pairs a malformed finding with the reason it was
// excluded from scoring. A bad finding never aborts the batch.
type RejectedFinding struct {
	Finding Finding `json:"finding"`
	Reason  string  `json:"reason"`
}
