package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/thesis-cli/internal/model"
	"github.com/sells-group/thesis-cli/internal/thesis"
)

var thesisCmd = &cobra.Command{
	Use:   "thesis",
	Short: "Manage investment theses",
	Long:  "A thesis is a versioned, falsifiable investment rationale. Every thesis carries at least one hypothesis and one kill criterion, otherwise it cannot be proven wrong.",
}

// -- thesis create --

var thesisCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a thesis from a YAML definition file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		path, _ := cmd.Flags().GetString("file")
		replace, _ := cmd.Flags().GetBool("replace")

		ticker, in, err := thesis.LoadFile(path)
		if err != nil {
			return err
		}
		in.Replace = replace

		mgr := thesis.NewManager(st, cfg.Hypothesis)
		th, err := mgr.Create(ctx, ticker, in)
		if eris.Is(err, model.ErrDuplicateActiveThesis) {
			return eris.Wrap(err, "an active thesis already exists, rerun with --replace to supersede it")
		}
		if err != nil {
			return err
		}

		zap.L().Info("thesis created",
			zap.String("ticker", ticker),
			zap.String("id", th.ID),
			zap.Int("version", th.Version),
		)
		return nil
	},
}

// -- thesis show --

var thesisShowCmd = &cobra.Command{
	Use:   "show <ticker>",
	Short: "Show the active thesis with hypotheses and kill criteria",
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
		th, err := st.ActiveThesis(ctx, company.ID)
		if err != nil {
			return err
		}
		if th == nil {
			fmt.Fprintln(os.Stderr, "No active thesis.")
			return nil
		}

		hyps, err := st.ListHypotheses(ctx, th.ID)
		if err != nil {
			return err
		}
		kills, err := st.ListKillCriteria(ctx, th.ID, false)
		if err != nil {
			return err
		}

		out := struct {
			Thesis       *model.Thesis         `json:"thesis"`
			Hypotheses   []model.Hypothesis    `json:"hypotheses"`
			KillCriteria []model.KillCriterion `json:"kill_criteria"`
		}{th, hyps, kills}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// -- thesis list --

var thesisListCmd = &cobra.Command{
	Use:   "list <ticker>",
	Short: "List all thesis versions for a company",
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
		theses, err := st.ListTheses(ctx, company.ID)
		if err != nil {
			return err
		}
		if len(theses) == 0 {
			fmt.Fprintln(os.Stderr, "No theses on record.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tID\tSTATUS\tPOSITION\tCLOSE REASON\tCREATED")
		for _, t := range theses {
			reason := "-"
			if t.CloseReason != "" {
				reason = string(t.CloseReason)
			}
			fmt.Fprintf(w, "v%d\t%s\t%s\t%s\t%s\t%s\n",
				t.Version, t.ID, t.Status, t.PositionType, reason,
				t.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

// -- thesis close --

var thesisCloseCmd = &cobra.Command{
	Use:   "close <thesis-id>",
	Short: "Close a thesis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rawReason, _ := cmd.Flags().GetString("reason")
		reason := model.CloseReason(rawReason)
		switch reason {
		case model.CloseReasonThesisBroken, model.CloseReasonSuperseded,
			model.CloseReasonPlayedOut, model.CloseReasonManual:
		default:
			return eris.Wrapf(model.ErrValidation, "unknown close reason %q", rawReason)
		}

		status := model.ThesisClosed
		if reason == model.CloseReasonThesisBroken {
			status = model.ThesisInvalidated
		}

		mgr := thesis.NewManager(st, cfg.Hypothesis)
		if err := mgr.Close(ctx, args[0], status, reason); err != nil {
			return eris.Wrap(err, "thesis close")
		}

		zap.L().Info("thesis closed",
			zap.String("id", args[0]),
			zap.String("reason", rawReason),
		)
		return nil
	},
}

func init() {
	thesisCreateCmd.Flags().StringP("file", "f", "", "path to thesis YAML file (required)")
	_ = thesisCreateCmd.MarkFlagRequired("file")
	thesisCreateCmd.Flags().Bool("replace", false, "supersede any existing active thesis")

	thesisCloseCmd.Flags().String("reason", "manual", "close reason (thesis_broken, superseded, played_out, manual)")

	thesisCmd.AddCommand(thesisCreateCmd)
	thesisCmd.AddCommand(thesisShowCmd)
	thesisCmd.AddCommand(thesisListCmd)
	thesisCmd.AddCommand(thesisCloseCmd)
	rootCmd.AddCommand(thesisCmd)
}
