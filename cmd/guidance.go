package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/guidance"
)

var guidanceCmd = &cobra.Command{
	Use:   "guidance",
	Short: "Track management guidance revision chains",
}

// -- guidance record --

var guidanceRecordCmd = &cobra.Command{
	Use:   "record <ticker>",
	Short: "Record a guidance statement",
	Long:  "Qualifies the statement against the current chain head (introduced, confirmed, raised, lowered, withdrawn) and links it into the revision chain. Restating an identical range on the same day is a no-op.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		company, err := st.GetCompany(ctx, args[0])
		if err != nil {
			return err
		}

		metric, _ := cmd.Flags().GetString("metric")
		low, _ := cmd.Flags().GetFloat64("low")
		high, _ := cmd.Flags().GetFloat64("high")
		unit, _ := cmd.Flags().GetString("unit")
		period, _ := cmd.Flags().GetString("period")
		withdrawn, _ := cmd.Flags().GetBool("withdrawn")
		rawDate, _ := cmd.Flags().GetString("date")

		sourceDate := time.Now().UTC()
		if rawDate != "" {
			sourceDate, err = time.Parse("2006-01-02", rawDate)
			if err != nil {
				return eris.Wrapf(err, "parse date %q", rawDate)
			}
		}

		chain := guidance.NewChain(st, cfg.Guidance)
		res, err := chain.Record(ctx, company.ID, guidance.RecordInput{
			Metric:     metric,
			ValueLow:   low,
			ValueHigh:  high,
			Unit:       unit,
			Period:     period,
			Withdrawn:  withdrawn,
			SourceDate: sourceDate,
		})
		if err != nil {
			return eris.Wrap(err, "guidance record")
		}

		if !res.Inserted {
			zap.L().Info("statement restates current guidance, nothing recorded",
				zap.String("ticker", company.Ticker),
				zap.String("metric", metric),
			)
			return nil
		}

		fields := []zap.Field{
			zap.String("ticker", company.Ticker),
			zap.String("metric", metric),
			zap.String("qualifier", string(res.Record.Qualifier)),
		}
		if res.Record.RevisionPct != nil {
			fields = append(fields, zap.Float64("revision_pct", *res.Record.RevisionPct))
		}
		if res.Alert {
			zap.L().Warn("large guidance revision", fields...)
		} else {
			zap.L().Info("guidance recorded", fields...)
		}
		return nil
	},
}

// -- guidance history --

var guidanceHistoryCmd = &cobra.Command{
	Use:   "history <ticker>",
	Short: "Show the revision chain for a metric, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		company, err := st.GetCompany(ctx, args[0])
		if err != nil {
			return err
		}
		metric, _ := cmd.Flags().GetString("metric")

		chain := guidance.NewChain(st, cfg.Guidance)
		records, err := chain.History(ctx, company.ID, metric)
		if err != nil {
			return eris.Wrap(err, "guidance history")
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No guidance on record.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tQUALIFIER\tRANGE\tPERIOD\tREVISION")
		for _, g := range records {
			revision := "-"
			if g.RevisionPct != nil {
				revision = fmt.Sprintf("%+.1f%%", *g.RevisionPct)
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f-%.2f %s\t%s\t%s\n",
				g.SourceDate.Format("2006-01-02"), g.Qualifier,
				g.ValueLow, g.ValueHigh, g.Unit, g.Period, revision)
		}
		return w.Flush()
	},
}

func init() {
	guidanceRecordCmd.Flags().String("metric", "", "guided metric name (required)")
	_ = guidanceRecordCmd.MarkFlagRequired("metric")
	guidanceRecordCmd.Flags().Float64("low", 0, "range low")
	guidanceRecordCmd.Flags().Float64("high", 0, "range high")
	guidanceRecordCmd.Flags().String("unit", "", "unit (USD millions, %, ...)")
	guidanceRecordCmd.Flags().String("period", "", "guided period (FY26, Q3-FY26, ...)")
	guidanceRecordCmd.Flags().Bool("withdrawn", false, "management withdrew guidance for this metric")
	guidanceRecordCmd.Flags().String("date", "", "statement date (YYYY-MM-DD, default today)")

	guidanceHistoryCmd.Flags().String("metric", "", "guided metric name (required)")
	_ = guidanceHistoryCmd.MarkFlagRequired("metric")

	guidanceCmd.AddCommand(guidanceRecordCmd)
	guidanceCmd.AddCommand(guidanceHistoryCmd)
	rootCmd.AddCommand(guidanceCmd)
}
