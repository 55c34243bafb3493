package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/classify"
	"github.com/sells-group/thesis-cli/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <ticker>",
	Short: "Classify filing significance against analyst consensus",
	Long:  "Scores extracted findings, dampens by consensus agreement, boosts documented contrarian positions, and assigns an urgency tier and report type. Findings come from a JSON file produced by extraction or by hand.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		findingsPath, _ := cmd.Flags().GetString("findings")
		filingType, _ := cmd.Flags().GetString("filing-type")
		rawDate, _ := cmd.Flags().GetString("filing-date")
		materialChange, _ := cmd.Flags().GetBool("material-change")
		relationship, _ := cmd.Flags().GetString("relationship")
		contrarian, _ := cmd.Flags().GetString("contrarian")

		data, err := os.ReadFile(findingsPath)
		if err != nil {
			return eris.Wrapf(err, "read findings %s", findingsPath)
		}
		var findings []model.Finding
		if err := json.Unmarshal(data, &findings); err != nil {
			return eris.Wrap(err, "parse findings")
		}

		filingDate := time.Now().UTC()
		if rawDate != "" {
			filingDate, err = time.Parse("2006-01-02", rawDate)
			if err != nil {
				return eris.Wrapf(err, "parse filing-date %q", rawDate)
			}
		}
		rel, err := model.ParseConsensusRelationship(relationship)
		if err != nil {
			return err
		}

		engine := classify.NewEngine(st, cfg.Classify)
		outcome, err := engine.Classify(ctx, args[0], classify.Request{
			FilingType:       model.ParseFilingType(filingType),
			FilingDate:       filingDate,
			Findings:         findings,
			MaterialChange:   materialChange,
			Relationship:     rel,
			ContrarianThesis: contrarian,
		})
		if err != nil {
			return eris.Wrap(err, "classify")
		}

		for _, rej := range outcome.Rejected {
			zap.L().Warn("finding rejected",
				zap.String("description", rej.Finding.Description),
				zap.String("reason", rej.Reason),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome.Classification)
	},
}

func init() {
	classifyCmd.Flags().String("findings", "", "path to findings JSON array (required)")
	_ = classifyCmd.MarkFlagRequired("findings")
	classifyCmd.Flags().String("filing-type", "other", "filing form (8-K, 10-Q, 10-K, other)")
	classifyCmd.Flags().String("filing-date", "", "filing date (YYYY-MM-DD, default today)")
	classifyCmd.Flags().Bool("material-change", false, "filing contains a material business change")
	classifyCmd.Flags().String("relationship", "neutral", "how the filing relates to consensus (confirms, challenges, neutral)")
	classifyCmd.Flags().String("contrarian", "", "documented contrarian thesis, boosts challenging filings")
	rootCmd.AddCommand(classifyCmd)
}
