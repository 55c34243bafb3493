package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/pkg/anthropic"
)

// fakeClient returns a canned response and records the request.
type fakeClient struct {
	response string
	lastReq  anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.response}},
	}, nil
}

func testInput() FilingInput {
	return FilingInput{
		Ticker:     "ACME",
		FilingType: model.Filing10Q,
		FilingDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Text:       "Gross margin declined 220bps on mix shift.",
	}
}

func testHypotheses() []model.Hypothesis {
	return []model.Hypothesis{
		{ID: "h-1", Status: model.HypothesisActive, Text: "attach rate exceeds 40% by Q4"},
	}
}

func newInterpreter(response string) (*Interpreter, *fakeClient) {
	fc := &fakeClient{response: response}
	return NewInterpreter(fc, config.AnthropicConfig{Model: "claude-haiku-4-5-20251001"}), fc
}

func TestInterpretValidOutput(t *testing.T) {
	i, fc := newInterpreter(`Here is the analysis:
{
  "findings": [
    {"description": "margin compression", "materiality": "high", "consensus_status": "new_information"}
  ],
  "material_change": true,
  "consensus_relationship": "challenges",
  "contrarian_case": "mix shift is temporary",
  "evidence": [
    {"hypothesis_id": "h-1", "direction": "against", "summary": "attach flat qoq"}
  ],
  "guidance": [
    {"metric": "revenue", "value_low": 100, "value_high": 110, "period": "FY2026"}
  ]
}`)

	out, err := i.Interpret(context.Background(), testInput(), testHypotheses())
	require.NoError(t, err)

	require.Len(t, out.Findings, 1)
	assert.Equal(t, model.MaterialityHigh, out.Findings[0].Materiality)
	assert.True(t, out.MaterialChange)
	assert.Equal(t, model.RelationshipChallenges, out.Relationship)
	assert.Equal(t, "mix shift is temporary", out.ContrarianCase)
	require.Len(t, out.Evidence, 1)
	assert.Equal(t, model.EvidenceAgainst, out.Evidence[0].Direction)
	require.Len(t, out.Guidance, 1)
	assert.Equal(t, "revenue", out.Guidance[0].Metric)

	// The hypothesis inventory travels in the user prompt.
	assert.Contains(t, fc.lastReq.Messages[0].Content, "id=h-1")
}

func TestInterpretQuarantinesBadEnums(t *testing.T) {
	i, _ := newInterpreter(`{
  "findings": [
    {"description": "good", "materiality": "high", "consensus_status": "priced_in"},
    {"description": "bad materiality", "materiality": "critical", "consensus_status": "priced_in"},
    {"description": "bad status", "materiality": "low", "consensus_status": "shocking"}
  ],
  "consensus_relationship": "sideways",
  "evidence": [
    {"hypothesis_id": "h-1", "direction": "maybe", "summary": "x"},
    {"hypothesis_id": "h-unknown", "direction": "for", "summary": "x"},
    {"hypothesis_id": "h-1", "direction": "for", "summary": ""}
  ]
}`)

	out, err := i.Interpret(context.Background(), testInput(), testHypotheses())
	require.NoError(t, err)

	assert.Len(t, out.Findings, 1)
	assert.Len(t, out.Rejected, 2)
	assert.Empty(t, out.Evidence)
	assert.Equal(t, model.RelationshipNeutral, out.Relationship)
}

func TestInterpretNoJSON(t *testing.T) {
	i, _ := newInterpreter("I could not parse this filing.")

	_, err := i.Interpret(context.Background(), testInput(), nil)
	require.Error(t, err)
}

func TestInterpretEmptyFiling(t *testing.T) {
	i, _ := newInterpreter("{}")

	in := testInput()
	in.Text = "  "
	_, err := i.Interpret(context.Background(), in, nil)
	require.Error(t, err)
}
