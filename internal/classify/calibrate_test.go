package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thesis-cli/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCalibrateWorkedExample(t *testing.T) {
	// Raw 49, consensus 0.875, confirming filing, earnings 12 days out:
	// dampener 0.475, calibrated 23.275, daily digest, earnings briefing.
	earnings := date(2026, 3, 12)
	res := Calibrate(CalibrationInput{
		RawScore:          49,
		ConsensusStrength: 0.875,
		ConsensusKnown:    true,
		Relationship:      model.RelationshipConfirms,
		EventDate:         date(2026, 2, 28),
		NextEarningsDate:  &earnings,
	}, defaultClassifyConfig())

	assert.InDelta(t, 0.475, res.Dampener, 0.0001)
	assert.InDelta(t, 23.275, res.CalibratedScore, 0.0001)
	assert.Equal(t, model.UrgencyDailyDigest, res.UrgencyTier)
	assert.Equal(t, model.ReportEarningsBriefing, res.ReportType)
}

func TestCalibrateDampenerCurve(t *testing.T) {
	cfg := defaultClassifyConfig()

	tests := []struct {
		strength string
		value    float64
		want     float64
	}{
		{"at threshold no dampening", 0.6, 1.0},
		{"just above threshold", 0.61, 1.0 - 0.6*0.61},
		{"reference point", 0.875, 0.475},
		{"unanimous strong buy", 1.0, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.strength, func(t *testing.T) {
			res := Calibrate(CalibrationInput{
				RawScore:          100,
				ConsensusStrength: tt.value,
				ConsensusKnown:    true,
				Relationship:      model.RelationshipConfirms,
			}, cfg)
			assert.InDelta(t, tt.want, res.Dampener, 0.0001)
		})
	}
}

func TestCalibrateNoConsensusPassThrough(t *testing.T) {
	// Zero analysts: raw score passes through unchanged, flagged for review.
	res := Calibrate(CalibrationInput{
		RawScore:     49,
		Relationship: model.RelationshipConfirms,
	}, defaultClassifyConfig())

	assert.InDelta(t, 49, res.CalibratedScore, 0.001)
	assert.True(t, res.ConsensusMissing)
	assert.Nil(t, res.ConsensusStrength)
	assert.Equal(t, model.UrgencyDailyDigest, res.UrgencyTier)
}

func TestCalibrateWeakConsensusNoDampening(t *testing.T) {
	res := Calibrate(CalibrationInput{
		RawScore:          40,
		ConsensusStrength: 0.5,
		ConsensusKnown:    true,
		Relationship:      model.RelationshipNeutral,
	}, defaultClassifyConfig())

	assert.InDelta(t, 40, res.CalibratedScore, 0.001)
	assert.InDelta(t, 1.0, res.Dampener, 0.001)
}

func TestCalibrateContrarianBoost(t *testing.T) {
	res := Calibrate(CalibrationInput{
		RawScore:          35,
		ConsensusStrength: 0.9,
		ConsensusKnown:    true,
		Relationship:      model.RelationshipChallenges,
		ContrarianThesis:  "street misses the hedge book roll-off in H2",
	}, defaultClassifyConfig())

	assert.InDelta(t, 65, res.CalibratedScore, 0.001)
	assert.Equal(t, model.UrgencyImmediate, res.UrgencyTier)
	assert.Equal(t, model.ReportContrarianAlert, res.ReportType)
	assert.NotEmpty(t, res.ContrarianThesis)
}

func TestCalibrateChallengeWithoutThesis(t *testing.T) {
	// A challenge with no stated thesis gets no boost and never becomes a
	// contrarian alert.
	res := Calibrate(CalibrationInput{
		RawScore:          35,
		ConsensusStrength: 0.9,
		ConsensusKnown:    true,
		Relationship:      model.RelationshipChallenges,
		ContrarianThesis:  "   ",
	}, defaultClassifyConfig())

	assert.InDelta(t, 35, res.CalibratedScore, 0.001)
	assert.Equal(t, model.ReportFilingUpdate, res.ReportType)
	assert.Empty(t, res.ContrarianThesis)
}

func TestCalibrateContrarianAlertAlwaysHasThesis(t *testing.T) {
	// Property: report_type = contrarian_alert implies a non-empty thesis.
	for _, thesis := range []string{"", " ", "real variant view"} {
		for _, rel := range []model.ConsensusRelationship{
			model.RelationshipConfirms, model.RelationshipChallenges, model.RelationshipNeutral,
		} {
			res := Calibrate(CalibrationInput{
				RawScore:         50,
				Relationship:     rel,
				ContrarianThesis: thesis,
			}, defaultClassifyConfig())
			if res.ReportType == model.ReportContrarianAlert {
				require.NotEmpty(t, res.ContrarianThesis)
			}
		}
	}
}

func TestCalibrateTiers(t *testing.T) {
	cfg := defaultClassifyConfig()

	tests := []struct {
		score float64
		want  model.UrgencyTier
	}{
		{0, model.UrgencyWeekly},
		{29.9, model.UrgencyWeekly},
		{30, model.UrgencyDailyDigest},
		{59.9, model.UrgencyDailyDigest},
		{60, model.UrgencyImmediate},
		{120, model.UrgencyImmediate},
	}

	for _, tt := range tests {
		res := Calibrate(CalibrationInput{RawScore: tt.score, Relationship: model.RelationshipNeutral}, cfg)
		assert.Equal(t, tt.want, res.UrgencyTier, "score %.1f", tt.score)
	}
}

func TestCalibrateEarningsHorizon(t *testing.T) {
	cfg := defaultClassifyConfig()
	event := date(2026, 2, 28)

	far := date(2026, 6, 1)
	res := Calibrate(CalibrationInput{
		RawScore: 10, Relationship: model.RelationshipNeutral,
		EventDate: event, NextEarningsDate: &far,
	}, cfg)
	assert.Equal(t, model.ReportFilingUpdate, res.ReportType)
	assert.Equal(t, model.UrgencyWeekly, res.UrgencyTier)

	near := date(2026, 3, 20)
	res = Calibrate(CalibrationInput{
		RawScore: 10, Relationship: model.RelationshipNeutral,
		EventDate: event, NextEarningsDate: &near,
	}, cfg)
	assert.Equal(t, model.ReportEarningsBriefing, res.ReportType)
	// Earnings briefings never wait for the weekly rollup.
	assert.Equal(t, model.UrgencyDailyDigest, res.UrgencyTier)
}
