package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/fetcher"
	"github.com/sells-group/thesis-cli/internal/model"
)

var ratingsCmd = &cobra.Command{
	Use:   "ratings",
	Short: "Manage analyst rating snapshots",
	Long:  "Rating snapshots feed the consensus strength dampener. Import them in bulk from a spreadsheet, pull from the market data provider, or set counts by hand.",
}

// -- ratings import --

var ratingsImportCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Import rating snapshots from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sheet, _ := cmd.Flags().GetString("sheet")
		skip, _ := cmd.Flags().GetInt("skip-rows")

		rows, rejected, err := fetcher.ReadRatingsXLSX(args[0], fetcher.XLSXOptions{
			SheetName: sheet,
			SkipRows:  skip,
		})
		if err != nil {
			return eris.Wrap(err, "ratings import")
		}
		for _, rerr := range rejected {
			zap.L().Warn("skipped row", zap.Error(rerr))
		}

		var saved int
		for _, row := range rows {
			company, err := st.GetCompany(ctx, row.Ticker)
			if eris.Is(err, model.ErrNotFound) {
				zap.L().Warn("ticker not on watchlist, skipping", zap.String("ticker", row.Ticker))
				continue
			}
			if err != nil {
				return err
			}
			if _, err := st.SaveRatings(ctx, company.ID, row.Counts, row.SourceDate); err != nil {
				return eris.Wrapf(err, "save ratings for %s", row.Ticker)
			}
			saved++
		}

		zap.L().Info("ratings import complete",
			zap.Int("saved", saved),
			zap.Int("rejected", len(rejected)),
			zap.String("file", args[0]),
		)
		return nil
	},
}

// -- ratings fetch --

var ratingsFetchCmd = &cobra.Command{
	Use:   "fetch <ticker>",
	Short: "Fetch the current rating distribution from the provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.MarketData.BaseURL == "" {
			return eris.New("market data base URL is required (THESIS_MARKET_DATA_BASE_URL)")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		company, err := st.GetCompany(ctx, args[0])
		if err != nil {
			return err
		}

		client := fetcher.NewRatingsClient(cfg.MarketData)
		counts, asOf, err := client.Fetch(ctx, company.Ticker)
		if err != nil {
			return eris.Wrap(err, "ratings fetch")
		}

		snap, err := st.SaveRatings(ctx, company.ID, counts, asOf)
		if err != nil {
			return err
		}

		zap.L().Info("ratings saved",
			zap.String("ticker", company.Ticker),
			zap.Int("analysts", snap.Counts.Total()),
			zap.Time("as_of", snap.SourceDate),
		)
		return nil
	},
}

// -- ratings set --

var ratingsSetCmd = &cobra.Command{
	Use:   "set <ticker>",
	Short: "Record a rating distribution by hand",
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

		counts := model.RatingCounts{}
		counts.StrongBuy, _ = cmd.Flags().GetInt("strong-buy")
		counts.Buy, _ = cmd.Flags().GetInt("buy")
		counts.Hold, _ = cmd.Flags().GetInt("hold")
		counts.Sell, _ = cmd.Flags().GetInt("sell")
		counts.StrongSell, _ = cmd.Flags().GetInt("strong-sell")

		asOf := time.Now().UTC()
		if raw, _ := cmd.Flags().GetString("as-of"); raw != "" {
			asOf, err = time.Parse("2006-01-02", raw)
			if err != nil {
				return eris.Wrapf(err, "parse as-of %q", raw)
			}
		}

		snap, err := st.SaveRatings(ctx, company.ID, counts, asOf)
		if err != nil {
			return eris.Wrap(err, "ratings set")
		}

		zap.L().Info("ratings saved",
			zap.String("ticker", company.Ticker),
			zap.Int("analysts", snap.Counts.Total()),
		)
		return nil
	},
}

// -- ratings show --

var ratingsShowCmd = &cobra.Command{
	Use:   "show <ticker>",
	Short: "Show the latest rating snapshot",
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
		snap, err := st.LatestRatings(ctx, company.ID)
		if err != nil {
			return err
		}
		if snap == nil {
			fmt.Fprintln(os.Stderr, "No rating snapshot on record.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STRONG BUY\tBUY\tHOLD\tSELL\tSTRONG SELL\tAS OF")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%s\n",
			snap.Counts.StrongBuy, snap.Counts.Buy, snap.Counts.Hold,
			snap.Counts.Sell, snap.Counts.StrongSell,
			snap.SourceDate.Format("2006-01-02"))
		return w.Flush()
	},
}

func init() {
	ratingsImportCmd.Flags().String("sheet", "", "sheet name (default first sheet)")
	ratingsImportCmd.Flags().Int("skip-rows", 1, "header rows to skip")

	ratingsSetCmd.Flags().Int("strong-buy", 0, "strong buy count")
	ratingsSetCmd.Flags().Int("buy", 0, "buy count")
	ratingsSetCmd.Flags().Int("hold", 0, "hold count")
	ratingsSetCmd.Flags().Int("sell", 0, "sell count")
	ratingsSetCmd.Flags().Int("strong-sell", 0, "strong sell count")
	ratingsSetCmd.Flags().String("as-of", "", "snapshot date (YYYY-MM-DD, default today)")

	ratingsCmd.AddCommand(ratingsImportCmd)
	ratingsCmd.AddCommand(ratingsFetchCmd)
	ratingsCmd.AddCommand(ratingsSetCmd)
	ratingsCmd.AddCommand(ratingsShowCmd)
	rootCmd.AddCommand(ratingsCmd)
}
