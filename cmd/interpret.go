package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/classify"
	"github.com/sells-group/thesis-cli/internal/guidance"
	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/synthesis"
	"github.com/sells-group/thesis-cli/internal/thesis"
	"github.com/sells-group/thesis-cli/pkg/anthropic"
)

var interpretCmd = &cobra.Command{
	Use:   "interpret <ticker>",
	Short: "Run a filing through the full interpretation pipeline",
	Long:  "Extracts findings, evidence calls, and guidance statements from a filing via Claude, then classifies significance, applies evidence to the active thesis, records guidance, and re-derives the thesis signal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic API key is required (THESIS_ANTHROPIC_KEY)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filePath, _ := cmd.Flags().GetString("file")
		filingType, _ := cmd.Flags().GetString("filing-type")
		rawDate, _ := cmd.Flags().GetString("filing-date")

		text, err := os.ReadFile(filePath)
		if err != nil {
			return eris.Wrapf(err, "read filing %s", filePath)
		}

		filingDate := time.Now().UTC()
		if rawDate != "" {
			filingDate, err = time.Parse("2006-01-02", rawDate)
			if err != nil {
				return eris.Wrapf(err, "parse filing-date %q", rawDate)
			}
		}

		company, err := st.GetCompany(ctx, args[0])
		if err != nil {
			return err
		}

		// The active thesis is optional: without one the pipeline still
		// classifies and records guidance, it just has no hypotheses to
		// apply evidence to.
		active, err := st.ActiveThesis(ctx, company.ID)
		if err != nil {
			return err
		}
		var hyps []model.Hypothesis
		if active != nil {
			hyps, err = st.ListHypotheses(ctx, active.ID)
			if err != nil {
				return err
			}
		}

		interp := synthesis.NewInterpreter(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
		result, err := interp.Interpret(ctx, synthesis.FilingInput{
			Ticker:     company.Ticker,
			FilingType: model.ParseFilingType(filingType),
			FilingDate: filingDate,
			Text:       string(text),
		}, hyps)
		if err != nil {
			return eris.Wrap(err, "interpret filing")
		}

		engine := classify.NewEngine(st, cfg.Classify)
		outcome, err := engine.Classify(ctx, company.Ticker, classify.Request{
			FilingType:       model.ParseFilingType(filingType),
			FilingDate:       filingDate,
			Findings:         result.Findings,
			MaterialChange:   result.MaterialChange,
			Relationship:     result.Relationship,
			ContrarianThesis: result.ContrarianCase,
		})
		if err != nil {
			return eris.Wrap(err, "classify filing")
		}

		mgr := thesis.NewManager(st, cfg.Hypothesis)
		for _, call := range result.Evidence {
			out, err := mgr.AddEvidence(ctx, call.HypothesisID, model.Evidence{
				Direction:  call.Direction,
				Summary:    call.Summary,
				SourceRef:  string(outcome.Classification.FilingType),
				SourceDate: filingDate,
			})
			if err != nil {
				zap.L().Warn("evidence call not applied",
					zap.String("hypothesis", call.HypothesisID),
					zap.Error(err),
				)
				continue
			}
			if out.Disproved {
				zap.L().Warn("hypothesis disproved",
					zap.String("hypothesis", call.HypothesisID),
				)
			}
		}

		chain := guidance.NewChain(st, cfg.Guidance)
		var revisions []model.GuidanceRecord
		for _, g := range result.Guidance {
			res, err := chain.Record(ctx, company.ID, guidance.RecordInput{
				Metric:     g.Metric,
				ValueLow:   g.ValueLow,
				ValueHigh:  g.ValueHigh,
				Unit:       g.Unit,
				Period:     g.Period,
				Withdrawn:  g.Withdrawn,
				SourceDate: filingDate,
			})
			if err != nil {
				zap.L().Warn("guidance statement not recorded",
					zap.String("metric", g.Metric),
					zap.Error(err),
				)
				continue
			}
			if res.Alert {
				zap.L().Warn("large guidance revision",
					zap.String("metric", g.Metric),
					zap.Float64("revision_pct", *res.Record.RevisionPct),
				)
			}
			if res.Alert || res.Record.Qualifier == model.GuidanceWithdrawn {
				revisions = append(revisions, *res.Record)
			}
		}

		var sig *thesis.Signal
		if active != nil {
			sig, err = mgr.EvaluateSignalWithGuidance(ctx, active.ID, nil, revisions)
			if err != nil && !eris.Is(err, model.ErrAlreadyClosed) {
				return eris.Wrap(err, "signal evaluate")
			}
		}

		summary := struct {
			Classification *model.Classification `json:"classification"`
			Rejected       int                   `json:"rejected_findings"`
			EvidenceCalls  int                   `json:"evidence_calls"`
			Guidance       int                   `json:"guidance_statements"`
			Verdict        thesis.SignalVerdict  `json:"verdict,omitempty"`
		}{
			Classification: outcome.Classification,
			Rejected:       len(outcome.Rejected),
			EvidenceCalls:  len(result.Evidence),
			Guidance:       len(result.Guidance),
		}
		if sig != nil {
			summary.Verdict = sig.Verdict
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	interpretCmd.Flags().StringP("file", "f", "", "path to filing text (required)")
	_ = interpretCmd.MarkFlagRequired("file")
	interpretCmd.Flags().String("filing-type", "other", "filing form (8-K, 10-Q, 10-K, other)")
	interpretCmd.Flags().String("filing-date", "", "filing date (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(interpretCmd)
}
