package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/thesis-cli/internal/fetcher"
	"github.com/sells-group/thesis-cli/internal/monitor"
	"github.com/sells-group/thesis-cli/internal/thesis"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [ticker...]",
	Short: "Sweep the watchlist for stale theses and consensus shifts",
	Long:  "Refreshes analyst ratings, flags overdue review dates and expired catalysts, and re-derives the signal for each active thesis. With no tickers the whole watchlist is swept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		skipRatings, _ := cmd.Flags().GetBool("skip-ratings")
		watch, _ := cmd.Flags().GetBool("watch")
		interval, _ := cmd.Flags().GetDuration("interval")

		var ratings *fetcher.RatingsClient
		if !skipRatings && cfg.MarketData.BaseURL != "" {
			ratings = fetcher.NewRatingsClient(cfg.MarketData)
		}

		mgr := thesis.NewManager(st, cfg.Hypothesis)
		mon := monitor.New(st, ratings, mgr, cfg.Monitor)

		if watch {
			wctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := mon.Watch(wctx, args, interval); err != nil && !eris.Is(err, context.Canceled) {
				return err
			}
			return nil
		}

		reports, err := mon.RunOnce(ctx, args)
		if err != nil {
			return eris.Wrap(err, "monitor sweep")
		}
		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to sweep.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TICKER\tRATINGS\tREVIEW\tCATALYST\tVERDICT\tERROR")
		for _, rep := range reports {
			errText := "-"
			if rep.Err != nil {
				errText = rep.Err.Error()
			}
			verdict := "-"
			if rep.Verdict != "" {
				verdict = string(rep.Verdict)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				rep.Ticker,
				mark(rep.RatingsRefreshed, "refreshed", "-"),
				mark(rep.ReviewOverdue, "OVERDUE", "ok"),
				mark(rep.CatalystExpired, "EXPIRED", "ok"),
				verdict, errText)
		}
		return w.Flush()
	},
}

func mark(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func init() {
	monitorCmd.Flags().Bool("skip-ratings", false, "skip the consensus refresh")
	monitorCmd.Flags().Bool("watch", false, "run continuously")
	monitorCmd.Flags().Duration("interval", time.Hour, "sweep interval in watch mode")
	rootCmd.AddCommand(monitorCmd)
}
