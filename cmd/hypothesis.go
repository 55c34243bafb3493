package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/thesis"
)

var hypothesisCmd = &cobra.Command{
	Use:     "hypothesis",
	Aliases: []string{"hyp"},
	Short:   "Manage hypotheses and their evidence trails",
}

// -- hypothesis evidence --

var hypothesisEvidenceCmd = &cobra.Command{
	Use:   "evidence <hypothesis-id>",
	Short: "Append an evidence entry to a hypothesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		direction, _ := cmd.Flags().GetString("direction")
		summary, _ := cmd.Flags().GetString("summary")
		sourceRef, _ := cmd.Flags().GetString("source")
		rawDate, _ := cmd.Flags().GetString("date")

		sourceDate := time.Now().UTC()
		if rawDate != "" {
			sourceDate, err = time.Parse("2006-01-02", rawDate)
			if err != nil {
				return eris.Wrapf(err, "parse date %q", rawDate)
			}
		}

		mgr := thesis.NewManager(st, cfg.Hypothesis)
		out, err := mgr.AddEvidence(ctx, args[0], model.Evidence{
			Direction:  model.EvidenceDirection(direction),
			Summary:    summary,
			SourceRef:  sourceRef,
			SourceDate: sourceDate,
		})
		if err != nil {
			return eris.Wrap(err, "hypothesis evidence")
		}

		log := zap.L().With(
			zap.String("hypothesis", args[0]),
			zap.String("status", string(out.Hypothesis.Status)),
			zap.Float64("confidence", out.Hypothesis.Confidence),
		)
		if out.Disproved {
			log.Warn("hypothesis disproved by consecutive contrary evidence")
		} else {
			log.Info("evidence recorded")
		}
		return nil
	},
}

// -- hypothesis supersede --

var hypothesisSupersedeCmd = &cobra.Command{
	Use:   "supersede <hypothesis-id>",
	Short: "Retire a hypothesis and replace it within the same thesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		text, _ := cmd.Flags().GetString("text")
		counter, _ := cmd.Flags().GetString("counter")
		confidence, _ := cmd.Flags().GetFloat64("confidence")
		scopeTag, _ := cmd.Flags().GetString("scope-tag")

		mgr := thesis.NewManager(st, cfg.Hypothesis)
		replacement, err := mgr.Supersede(ctx, args[0], model.Hypothesis{
			Text:        text,
			CounterText: counter,
			Confidence:  confidence,
			ScopeTag:    scopeTag,
		})
		if err != nil {
			return eris.Wrap(err, "hypothesis supersede")
		}

		zap.L().Info("hypothesis superseded",
			zap.String("old", args[0]),
			zap.String("new", replacement.ID),
		)
		return nil
	},
}

func init() {
	hypothesisEvidenceCmd.Flags().String("direction", "", "for or against (required)")
	_ = hypothesisEvidenceCmd.MarkFlagRequired("direction")
	hypothesisEvidenceCmd.Flags().String("summary", "", "what was observed (required)")
	_ = hypothesisEvidenceCmd.MarkFlagRequired("summary")
	hypothesisEvidenceCmd.Flags().String("source", "", "source reference (filing, call, channel check)")
	hypothesisEvidenceCmd.Flags().String("date", "", "observation date (YYYY-MM-DD, default today)")

	hypothesisSupersedeCmd.Flags().String("text", "", "replacement hypothesis text (required)")
	_ = hypothesisSupersedeCmd.MarkFlagRequired("text")
	hypothesisSupersedeCmd.Flags().String("counter", "", "counter-hypothesis text")
	hypothesisSupersedeCmd.Flags().Float64("confidence", 50, "starting confidence [0,100]")
	hypothesisSupersedeCmd.Flags().String("scope-tag", "", "reuse tag for cross-company hypotheses")

	hypothesisCmd.AddCommand(hypothesisEvidenceCmd)
	hypothesisCmd.AddCommand(hypothesisSupersedeCmd)
	rootCmd.AddCommand(hypothesisCmd)
}
