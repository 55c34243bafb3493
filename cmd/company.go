package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/model"
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage the coverage watchlist",
}

// -- company add --

var companyAddCmd = &cobra.Command{
	Use:   "add <ticker>",
	Short: "Add or update a company on the watchlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, _ := cmd.Flags().GetString("name")
		priority, _ := cmd.Flags().GetString("priority")
		earnings, _ := cmd.Flags().GetString("next-earnings")

		c := model.Company{
			Ticker:            args[0],
			Name:              name,
			WatchlistPriority: model.WatchlistPriority(priority),
		}
		if earnings != "" {
			d, err := time.Parse("2006-01-02", earnings)
			if err != nil {
				return eris.Wrapf(err, "parse next-earnings %q", earnings)
			}
			c.NextEarningsDate = &d
		}

		saved, err := st.UpsertCompany(ctx, &c)
		if err != nil {
			return eris.Wrap(err, "company add")
		}

		zap.L().Info("company saved",
			zap.String("ticker", saved.Ticker),
			zap.String("priority", string(saved.WatchlistPriority)),
		)
		return nil
	},
}

// -- company list --

var companyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watchlist companies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		companies, err := st.ListCompanies(ctx)
		if err != nil {
			return eris.Wrap(err, "company list")
		}
		if len(companies) == 0 {
			fmt.Fprintln(os.Stderr, "Watchlist is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TICKER\tNAME\tPRIORITY\tNEXT EARNINGS")
		for _, c := range companies {
			earnings := "-"
			if c.NextEarningsDate != nil {
				earnings = c.NextEarningsDate.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Ticker, c.Name, c.WatchlistPriority, earnings)
		}
		return w.Flush()
	},
}

func init() {
	companyAddCmd.Flags().String("name", "", "company name")
	companyAddCmd.Flags().String("priority", "standard", "watchlist priority (primary, standard)")
	companyAddCmd.Flags().String("next-earnings", "", "next earnings date (YYYY-MM-DD)")

	companyCmd.AddCommand(companyAddCmd)
	companyCmd.AddCommand(companyListCmd)
	rootCmd.AddCommand(companyCmd)
}
