package main

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/thesis"
)

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Manage and evaluate kill criteria",
	Long:  "Kill criteria are pre-committed exit conditions. Evaluating observed metrics against them fires triggers and re-derives the thesis signal.",
}

// -- kill add --

var killAddCmd = &cobra.Command{
	Use:   "add <thesis-id>",
	Short: "Add a kill criterion to an active thesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		metric, _ := cmd.Flags().GetString("metric")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		operator, _ := cmd.Flags().GetString("operator")
		category, _ := cmd.Flags().GetString("category")
		description, _ := cmd.Flags().GetString("description")

		mgr := thesis.NewManager(st, cfg.Hypothesis)
		k, err := mgr.AddKillCriterion(ctx, args[0], model.KillCriterion{
			MetricName:     metric,
			ThresholdValue: threshold,
			Operator:       model.ThresholdOperator(operator),
			Category:       model.KillCategory(category),
			Description:    description,
		})
		if err != nil {
			return eris.Wrap(err, "kill add")
		}

		zap.L().Info("kill criterion added",
			zap.String("id", k.ID),
			zap.String("metric", k.MetricName),
		)
		return nil
	},
}

// -- kill evaluate --

var killEvaluateCmd = &cobra.Command{
	Use:   "evaluate <ticker>",
	Short: "Evaluate observed metrics against the active thesis",
	Long:  "Compares observations against untriggered kill criteria, fires any breached triggers, then re-derives the thesis signal. A stop-loss or thesis-break trigger invalidates the thesis.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rawObs, _ := cmd.Flags().GetStringToString("observe")
		evidence, _ := cmd.Flags().GetString("evidence")
		rawDate, _ := cmd.Flags().GetString("date")

		if len(rawObs) == 0 {
			return eris.Wrap(model.ErrValidation, "at least one --observe metric=value is required")
		}
		observations := make(map[string]float64, len(rawObs))
		for metric, raw := range rawObs {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return eris.Wrapf(err, "parse observation %s=%q", metric, raw)
			}
			observations[metric] = v
		}

		observedDate := time.Now().UTC()
		if rawDate != "" {
			observedDate, err = time.Parse("2006-01-02", rawDate)
			if err != nil {
				return eris.Wrapf(err, "parse date %q", rawDate)
			}
		}

		company, err := st.GetCompany(ctx, args[0])
		if err != nil {
			return err
		}
		active, err := st.ActiveThesis(ctx, company.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return eris.Wrapf(model.ErrNotFound, "no active thesis for %s", company.Ticker)
		}

		mgr := thesis.NewManager(st, cfg.Hypothesis)
		triggers, err := mgr.EvaluateKills(ctx, active.ID, observations, observedDate, evidence)
		if err != nil {
			return eris.Wrap(err, "kill evaluate")
		}

		sig, err := mgr.EvaluateSignal(ctx, active.ID, triggers)
		if err != nil {
			return eris.Wrap(err, "signal evaluate")
		}

		zap.L().Info("evaluation complete",
			zap.String("ticker", company.Ticker),
			zap.Int("triggers_fired", len(triggers)),
			zap.String("verdict", string(sig.Verdict)),
			zap.Bool("thesis_closed", sig.Closed),
		)
		return nil
	},
}

func init() {
	killAddCmd.Flags().String("metric", "", "metric name (required)")
	_ = killAddCmd.MarkFlagRequired("metric")
	killAddCmd.Flags().Float64("threshold", 0, "threshold value")
	killAddCmd.Flags().String("operator", "<", "comparison operator (<, >, =, <=, >=)")
	killAddCmd.Flags().String("category", "thesis_break", "category (stop_loss, thesis_break, review)")
	killAddCmd.Flags().String("description", "", "what breaching this means")

	killEvaluateCmd.Flags().StringToString("observe", nil, "observed metric=value pairs (repeatable)")
	killEvaluateCmd.Flags().String("evidence", "", "source of the observations")
	killEvaluateCmd.Flags().String("date", "", "observation date (YYYY-MM-DD, default today)")

	killCmd.AddCommand(killAddCmd)
	killCmd.AddCommand(killEvaluateCmd)
	rootCmd.AddCommand(killCmd)
}
