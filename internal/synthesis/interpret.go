// Package synthesis turns raw filing text into structured findings and
// hypothesis evidence using a language model. Model output is untrusted:
// every enum is validated and anything outside the known variants is
// quarantined rather than coerced.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/config"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/pkg/anthropic"
)

// Interpreter extracts findings and evidence calls from filings.
type Interpreter struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(client anthropic.Client, cfg config.AnthropicConfig) *Interpreter {
	return &Interpreter{client: client, cfg: cfg}
}

// FilingInput is the raw material for one interpretation pass.
type FilingInput struct {
	Ticker     string
	FilingType model.FilingType
	FilingDate time.Time
	Text       string
}

// EvidenceCall maps a filing observation onto one tracked hypothesis.
type EvidenceCall struct {
	HypothesisID string                  `json:"hypothesis_id"`
	Direction    model.EvidenceDirection `json:"direction"`
	Summary      string                  `json:"summary"`
}

// GuidanceCall is a guidance statement the model read out of the filing.
type GuidanceCall struct {
	Metric    string  `json:"metric"`
	ValueLow  float64 `json:"value_low"`
	ValueHigh float64 `json:"value_high"`
	Unit      string  `json:"unit"`
	Period    string  `json:"period"`
	Withdrawn bool    `json:"withdrawn"`
}

// Interpretation is the validated output of one pass.
type Interpretation struct {
	Findings       []model.Finding
	Rejected       []model.RejectedFinding
	MaterialChange bool
	Relationship   model.ConsensusRelationship
	ContrarianCase string
	Evidence       []EvidenceCall
	Guidance       []GuidanceCall
}

const systemPrompt = `You are an equity research assistant reading SEC filings
for a single-analyst investment process. Extract structured observations only;
never speculate beyond the text. Respond with a single JSON object:
{
  "findings": [{"description": "...", "materiality": "high|medium|low",
                "consensus_status": "priced_in|new_information|confirms_thesis"}],
  "material_change": true|false,
  "consensus_relationship": "confirms|challenges|neutral",
  "contrarian_case": "non-empty only when the filing supports a view against consensus",
  "evidence": [{"hypothesis_id": "...", "direction": "for|against", "summary": "..."}],
  "guidance": [{"metric": "...", "value_low": 0, "value_high": 0,
                "unit": "...", "period": "...", "withdrawn": false}]
}
Reference only the hypothesis IDs you were given. Use lowercase enum values.`

// rawPayload keeps everything as loose strings so validation is ours.
type rawPayload struct {
	Findings []struct {
		Description     string `json:"description"`
		Materiality     string `json:"materiality"`
		ConsensusStatus string `json:"consensus_status"`
	} `json:"findings"`
	MaterialChange        bool   `json:"material_change"`
	ConsensusRelationship string `json:"consensus_relationship"`
	ContrarianCase        string `json:"contrarian_case"`
	Evidence              []struct {
		HypothesisID string `json:"hypothesis_id"`
		Direction    string `json:"direction"`
		Summary      string `json:"summary"`
	} `json:"evidence"`
	Guidance []GuidanceCall `json:"guidance"`
}

// Interpret runs one model pass over a filing against the given
// hypotheses and validates everything that comes back.
func (i *Interpreter) Interpret(ctx context.Context, in FilingInput, hyps []model.Hypothesis) (*Interpretation, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, eris.Wrap(model.ErrValidation, "synthesis: filing text is empty")
	}

	resp, err := i.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     i.cfg.Model,
		MaxTokens: 4096,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: buildUserPrompt(in, hyps)},
		},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(i.cfg.Model, "interpret")

	payload, err := decodePayload(resp.Text())
	if err != nil {
		return nil, err
	}
	return i.validate(payload, hyps), nil
}

func buildUserPrompt(in FilingInput, hyps []model.Hypothesis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\nFiling type: %s\nFiling date: %s\n\n",
		in.Ticker, in.FilingType, in.FilingDate.Format("2006-01-02"))
	if len(hyps) > 0 {
		b.WriteString("Tracked hypotheses:\n")
		for _, h := range hyps {
			fmt.Fprintf(&b, "- id=%s status=%s: %s\n", h.ID, h.Status, h.Text)
		}
		b.WriteString("\n")
	}
	b.WriteString("Filing text:\n")
	b.WriteString(in.Text)
	return b.String()
}

// decodePayload locates the JSON object in the model output, tolerating
// code fences and surrounding prose.
func decodePayload(text string) (*rawPayload, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("synthesis: no JSON object in model output (%d bytes)", len(text))
	}
	var payload rawPayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, eris.Wrap(err, "synthesis: decode model output")
	}
	return &payload, nil
}

func (i *Interpreter) validate(payload *rawPayload, hyps []model.Hypothesis) *Interpretation {
	out := &Interpretation{
		MaterialChange: payload.MaterialChange,
		ContrarianCase: strings.TrimSpace(payload.ContrarianCase),
		Guidance:       payload.Guidance,
	}

	rel, err := model.ParseConsensusRelationship(payload.ConsensusRelationship)
	if err != nil {
		zap.L().Warn("unknown consensus relationship from model, treating as neutral",
			zap.String("value", payload.ConsensusRelationship))
		rel = model.RelationshipNeutral
	}
	out.Relationship = rel

	for _, rf := range payload.Findings {
		f := model.Finding{
			Description:     rf.Description,
			Materiality:     model.Materiality(rf.Materiality),
			ConsensusStatus: model.ConsensusStatus(rf.ConsensusStatus),
		}
		if err := f.Validate(); err != nil {
			out.Rejected = append(out.Rejected, model.RejectedFinding{Finding: f, Reason: err.Error()})
			continue
		}
		out.Findings = append(out.Findings, f)
	}

	known := make(map[string]bool, len(hyps))
	for _, h := range hyps {
		known[h.ID] = true
	}
	for _, re := range payload.Evidence {
		dir, err := model.ParseEvidenceDirection(re.Direction)
		if err != nil {
			zap.L().Warn("dropping evidence call with bad direction",
				zap.String("direction", re.Direction))
			continue
		}
		if !known[re.HypothesisID] {
			zap.L().Warn("dropping evidence call for unknown hypothesis",
				zap.String("hypothesis_id", re.HypothesisID))
			continue
		}
		if strings.TrimSpace(re.Summary) == "" {
			zap.L().Warn("dropping evidence call with empty summary",
				zap.String("hypothesis_id", re.HypothesisID))
			continue
		}
		out.Evidence = append(out.Evidence, EvidenceCall{
			HypothesisID: re.HypothesisID,
			Direction:    dir,
			Summary:      re.Summary,
		})
	}
	return out
}
