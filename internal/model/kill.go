package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ThresholdOperator compares an observed value against a threshold.
type ThresholdOperator string

const (
	OpLess         ThresholdOperator = "<"
	OpGreater      ThresholdOperator = ">"
	OpEqual        ThresholdOperator = "="
	OpLessEqual    ThresholdOperator = "<="
	OpGreaterEqual ThresholdOperator = ">="
)

// ParseThresholdOperator validates a raw operator string.
func ParseThresholdOperator(s string) (ThresholdOperator, error) {
	switch ThresholdOperator(strings.TrimSpace(s)) {
	case OpLess, OpGreater, OpEqual, OpLessEqual, OpGreaterEqual:
		return ThresholdOperator(strings.TrimSpace(s)), nil
	default:
		return "", eris.Wrapf(ErrValidation, "kill criterion: unknown operator %q", s)
	}
}

// Apply evaluates the operator with the observed value on the left.
func (op ThresholdOperator) Apply(observed, threshold float64) bool {
	switch op {
	case OpLess:
		return observed < threshold
	case OpGreater:
		return observed > threshold
	case OpEqual:
		return observed == threshold
	case OpLessEqual:
		return observed <= threshold
	case OpGreaterEqual:
		return observed >= threshold
	default:
		return false
	}
}

// KillCategory determines what a triggered criterion means for the
// thesis. Only stop_loss and thesis_break invalidate it.
type KillCategory string

const (
	KillStopLoss    KillCategory = "stop_loss"
	KillThesisBreak KillCategory = "thesis_break"
	KillReview      KillCategory = "review"
)

// ParseKillCategory validates a raw category string.
func ParseKillCategory(s string) (KillCategory, error) {
	switch KillCategory(strings.ToLower(strings.TrimSpace(s))) {
	case KillStopLoss:
		return KillStopLoss, nil
	case KillThesisBreak:
		return KillThesisBreak, nil
	case KillReview, "":
		return KillReview, nil
	default:
		return "", eris.Wrapf(ErrValidation, "kill criterion: unknown category %q", s)
	}
}

// KillCriterion is an explicit numeric exit condition owned by a thesis.
// Once triggered the record is immutable except for narrative annotation;
// triggering is a recommendation signal, it does not itself close the
// thesis.
type KillCriterion struct {
	ID                string            `json:"id" yaml:"-"`
	ThesisID          string            `json:"thesis_id" yaml:"-"`
	MetricName        string            `json:"metric_name" yaml:"metric_name"`
	ThresholdValue    float64           `json:"threshold_value" yaml:"threshold_value"`
	Operator          ThresholdOperator `json:"operator" yaml:"operator"`
	Category          KillCategory      `json:"category" yaml:"category"`
	Description       string            `json:"description" yaml:"description"`
	Triggered         bool              `json:"triggered" yaml:"-"`
	TriggeredDate     *time.Time        `json:"triggered_date,omitempty" yaml:"-"`
	ObservedValue     *float64          `json:"observed_value,omitempty" yaml:"-"`
	TriggeredEvidence string            `json:"triggered_evidence,omitempty" yaml:"-"`
	Note              string            `json:"note,omitempty" yaml:"-"`
	CreatedAt         time.Time         `json:"created_at" yaml:"-"`
}

// Validate checks metric name, operator, and category.
func (k *KillCriterion) Validate() error {
	if strings.TrimSpace(k.MetricName) == "" {
		return eris.Wrap(ErrValidation, "kill criterion: metric_name is required")
	}
	op, err := ParseThresholdOperator(string(k.Operator))
	if err != nil {
		return err
	}
	k.Operator = op
	cat, err := ParseKillCategory(string(k.Category))
	if err != nil {
		return err
	}
	k.Category = cat
	return nil
}

// KillTrigger is emitted when a criterion newly fires. Consumed by the
// thesis lifecycle manager as part of a signal.
type KillTrigger struct {
	CriterionID   string       `json:"criterion_id"`
	ThesisID      string       `json:"thesis_id"`
	MetricName    string       `json:"metric_name"`
	Category      KillCategory `json:"category"`
	ObservedValue float64      `json:"observed_value"`
	ObservedDate  time.Time    `json:"observed_date"`
}
