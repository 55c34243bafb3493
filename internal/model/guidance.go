package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// GuidanceQualifier classifies a guidance record relative to the
// immediately prior record for the same (company, metric).
type GuidanceQualifier string

const (
	GuidanceIntroduced GuidanceQualifier = "introduced"
	GuidanceConfirmed  GuidanceQualifier = "confirmed"
	GuidanceRaised     GuidanceQualifier = "raised"
	GuidanceLowered    GuidanceQualifier = "lowered"
	GuidanceWithdrawn  GuidanceQualifier = "withdrawn"
)

// GuidanceRecord is one node in the singly-linked revision chain for a
// (company, metric) pair. Supersedes points at the prior record; the
// record with no successor is the chain head. A record is never edited
// once a successor exists.
type GuidanceRecord struct {
	ID          string            `json:"id"`
	CompanyID   string            `json:"company_id"`
	MetricName  string            `json:"metric_name"`
	ValueLow    float64           `json:"value_low"`
	ValueHigh   float64           `json:"value_high"`
	Unit        string            `json:"unit,omitempty"`
	Period      string            `json:"period"`
	Qualifier   GuidanceQualifier `json:"qualifier"`
	RevisionPct *float64          `json:"revision_pct,omitempty"`
	SourceDate  time.Time         `json:"source_date"`
	Supersedes  *string           `json:"supersedes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Midpoint returns the center of the guided range.
func (g *GuidanceRecord) Midpoint() float64 {
	return (g.ValueLow + g.ValueHigh) / 2
}

// Validate checks metric name and range ordering. Withdrawn records may
// carry a zero range.
func (g *GuidanceRecord) Validate() error {
	g.MetricName = strings.ToLower(strings.TrimSpace(g.MetricName))
	if g.MetricName == "" {
		return eris.Wrap(ErrValidation, "guidance: metric_name is required")
	}
	if g.Qualifier != GuidanceWithdrawn && g.ValueHigh < g.ValueLow {
		return eris.Wrapf(ErrValidation, "guidance: range high %.4f below low %.4f", g.ValueHigh, g.ValueLow)
	}
	return nil
}

// Decision is an append-only audit entry recording a lifecycle verdict or
// automated action. The decision log is the system's institutional memory
// of why state changed.
type Decision struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	ThesisID     string    `json:"thesis_id,omitempty"`
	DecisionType string    `json:"decision_type"`
	DecisionText string    `json:"decision_text"`
	Rationale    string    `json:"rationale,omitempty"`
	Snapshot     []byte    `json:"snapshot,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Decision types written by the lifecycle components.
const (
	DecisionThesisCreated    = "thesis_created"
	DecisionThesisClosed     = "thesis_closed"
	DecisionKillTriggered    = "kill_triggered"
	DecisionGuidanceRevision = "guidance_revision"
	DecisionSignalVerdict    = "signal_verdict"
)
