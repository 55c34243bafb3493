package model

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// PositionType is the stance a thesis takes on a company.
type PositionType string

const (
	PositionOwn   PositionType = "own"
	PositionAvoid PositionType = "avoid"
	PositionShort PositionType = "short"
)

// ThesisStatus is the lifecycle state of a thesis. Closed and invalidated
// are terminal; a thesis is never reopened, a new version is created.
type ThesisStatus string

const (
	ThesisActive      ThesisStatus = "active"
	ThesisClosed      ThesisStatus = "closed"
	ThesisInvalidated ThesisStatus = "invalidated"
)

// CloseReason records why a thesis left the active state.
type CloseReason string

const (
	CloseReasonThesisBroken CloseReason = "thesis_broken"
	CloseReasonSuperseded   CloseReason = "superseded"
	CloseReasonPlayedOut    CloseReason = "played_out"
	CloseReasonManual       CloseReason = "manual"
)

// confidenceSumTolerance bounds how far the bull/base/bear triple may
// drift from 100 before being rejected.
const confidenceSumTolerance = 1.0

// Thesis is a versioned, time-boxed investment rationale for one company.
// At most one thesis per company is active at a time; the store enforces
// this with a uniqueness constraint, not in-process state.
type Thesis struct {
	ID                  string       `json:"id" yaml:"-"`
	CompanyID           string       `json:"company_id" yaml:"-"`
	Ticker              string       `json:"ticker" yaml:"ticker"`
	PositionType        PositionType `json:"position_type" yaml:"position_type"`
	MarketView          string       `json:"market_view" yaml:"market_view"`
	OurView             string       `json:"our_view" yaml:"our_view"`
	VariantEdge         string       `json:"variant_edge" yaml:"variant_edge"`
	ConfidenceBull      float64      `json:"confidence_bull" yaml:"confidence_bull"`
	ConfidenceBase      float64      `json:"confidence_base" yaml:"confidence_base"`
	ConfidenceBear      float64      `json:"confidence_bear" yaml:"confidence_bear"`
	CatalystDescription string       `json:"catalyst_description" yaml:"catalyst_description"`
	CatalystDeadline    *time.Time   `json:"catalyst_deadline,omitempty" yaml:"catalyst_deadline"`
	ReviewDate          *time.Time   `json:"review_date,omitempty" yaml:"review_date"`
	Status              ThesisStatus `json:"status" yaml:"-"`
	Version             int          `json:"version" yaml:"-"`
	CloseReason         CloseReason  `json:"close_reason,omitempty" yaml:"-"`
	ClosedAt            *time.Time   `json:"closed_at,omitempty" yaml:"-"`
	CreatedAt           time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt           time.Time    `json:"updated_at" yaml:"-"`
}

// Validate checks the position enum and the confidence triple.
func (t *Thesis) Validate() error {
	switch PositionType(strings.ToLower(string(t.PositionType))) {
	case PositionOwn, PositionAvoid, PositionShort:
		t.PositionType = PositionType(strings.ToLower(string(t.PositionType)))
	default:
		return eris.Wrapf(ErrValidation, "thesis: unknown position type %q", t.PositionType)
	}
	if t.OurView == "" {
		return eris.Wrap(ErrValidation, "thesis: our_view is required")
	}
	sum := t.ConfidenceBull + t.ConfidenceBase + t.ConfidenceBear
	if math.Abs(sum-100) > confidenceSumTolerance {
		return eris.Wrapf(ErrValidation, "thesis: confidence triple sums to %.1f, want ~100", sum)
	}
	return nil
}

// Terminal reports whether the thesis has left the active state.
func (t *Thesis) Terminal() bool {
	return t.Status == ThesisClosed || t.Status == ThesisInvalidated
}

// HypothesisStatus is the evidence-driven state of a hypothesis.
// Disproved and superseded are terminal.
type HypothesisStatus string

const (
	HypothesisActive       HypothesisStatus = "active"
	HypothesisStrengthened HypothesisStatus = "strengthened"
	HypothesisWeakened     HypothesisStatus = "weakened"
	HypothesisDisproved    HypothesisStatus = "disproved"
	HypothesisSuperseded   HypothesisStatus = "superseded"
)

// Terminal reports whether a hypothesis can still accept evidence.
func (s HypothesisStatus) Terminal() bool {
	return s == HypothesisDisproved || s == HypothesisSuperseded
}

// Hypothesis is a falsifiable prediction owned by exactly one thesis.
// ScopeTag optionally marks it for cross-company or industry reuse.
type Hypothesis struct {
	ID          string           `json:"id" yaml:"-"`
	ThesisID    string           `json:"thesis_id" yaml:"-"`
	Text        string           `json:"hypothesis" yaml:"hypothesis"`
	CounterText string           `json:"counter_hypothesis" yaml:"counter_hypothesis"`
	Confidence  float64          `json:"confidence" yaml:"confidence"`
	Status      HypothesisStatus `json:"status" yaml:"-"`
	ScopeTag    string           `json:"scope_tag,omitempty" yaml:"scope_tag"`
	CreatedAt   time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time        `json:"updated_at" yaml:"-"`
}

// Validate checks required text and confidence bounds.
func (h *Hypothesis) Validate() error {
	if strings.TrimSpace(h.Text) == "" {
		return eris.Wrap(ErrValidation, "hypothesis: text is required")
	}
	if h.Confidence < 0 || h.Confidence > 100 {
		return eris.Wrapf(ErrValidation, "hypothesis: confidence %.1f out of range [0,100]", h.Confidence)
	}
	return nil
}

// EvidenceDirection tags whether an evidence entry supports or
// contradicts its hypothesis.
type EvidenceDirection string

const (
	EvidenceFor     EvidenceDirection = "for"
	EvidenceAgainst EvidenceDirection = "against"
)

// ParseEvidenceDirection validates a raw direction string.
func ParseEvidenceDirection(s string) (EvidenceDirection, error) {
	switch EvidenceDirection(strings.ToLower(strings.TrimSpace(s))) {
	case EvidenceFor:
		return EvidenceFor, nil
	case EvidenceAgainst:
		return EvidenceAgainst, nil
	default:
		return "", eris.Wrapf(ErrValidation, "evidence: unknown direction %q", s)
	}
}

// Evidence is an append-only entry in a hypothesis's audit trail. Never
// mutated or deleted after creation.
type Evidence struct {
	ID           string            `json:"id"`
	HypothesisID string            `json:"hypothesis_id"`
	Direction    EvidenceDirection `json:"direction"`
	Summary      string            `json:"summary"`
	SourceRef    string            `json:"source_ref"`
	SourceDate   time.Time         `json:"source_date"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Validate checks the direction enum and required summary.
func (e *Evidence) Validate() error {
	dir, err := ParseEvidenceDirection(string(e.Direction))
	if err != nil {
		return err
	}
	e.Direction = dir
	if strings.TrimSpace(e.Summary) == "" {
		return eris.Wrap(ErrValidation, "evidence: summary is required")
	}
	return nil
}
