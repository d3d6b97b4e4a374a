package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bimanual.report/internal/acquisition"
	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/predict"
)

func newSessionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			sessions, err := st.DB().Sessions(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPARTICIPANT\tCREATED\tTRIALS")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Participant, s.CreatedAt.Format(time.RFC3339), s.TrialCount)
			}
			return w.Flush()
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	var (
		participant string
		sessionID   string
		startAt     string
	)
	cmd := &cobra.Command{
		Use:   "import <capture-file>",
		Short: "Import a recorded tracker stream as trials",
		Long: `Split a recorded tracker stream into trials and analyse each one.

Each button press ends a trial. Trials go into --session, or into a new
session for --participant.

Example: bimanual-tools import --participant P07 capture.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (participant == "") == (sessionID == "") {
				return fmt.Errorf("exactly one of --participant or --session is required")
			}
			start := time.Now().UTC()
			if startAt != "" {
				var err error
				if start, err = time.Parse(time.RFC3339, startAt); err != nil {
					return fmt.Errorf("invalid --start (use RFC3339): %w", err)
				}
			}

			st, tuning, closeDB, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			if sessionID == "" {
				s := db.Session{Participant: participant, Notes: "imported from " + args[0]}
				if err := st.DB().CreateSession(ctx, &s); err != nil {
					return err
				}
				sessionID = s.ID
			} else if _, err := st.DB().Session(ctx, sessionID); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			cfg := acquisition.Config{
				SampleRate: st.Pipeline().Thresholds().SampleRate,
				Timeout:    tuning.GetTrialTimeout(),
			}
			n, err := acquisition.ImportCapture(ctx, f, sessionID, start, cfg, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d trials into session %s\n", n, sessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&participant, "participant", "", "Create a new session for this participant")
	cmd.Flags().StringVar(&sessionID, "session", "", "Add trials to this existing session")
	cmd.Flags().StringVar(&startAt, "start", "", "Stream start time, RFC3339 (default now)")
	return cmd
}

func newReprocessCmd(opts *options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reprocess [session-id...]",
		Short: "Re-analyse sessions with the current tuning",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("give session ids or --all")
			}
			st, _, closeDB, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			ids := args
			if all {
				sessions, err := st.DB().Sessions(ctx)
				if err != nil {
					return err
				}
				for _, s := range sessions {
					ids = append(ids, s.ID)
				}
			}
			var failed int
			for _, id := range ids {
				n, err := st.Reprocess(ctx, id)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d trials analysed\n", id, n)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d sessions had failures", failed, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reprocess every session")
	return cmd
}

func newPredictCmd(opts *options) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "predict <session-id>",
		Short: "Fetch predicted scores for unscored trials",
		Long: `Send every trial of the session that has no manual score to a scoring
service and store the returned score as its predicted score.

The service receives {"trial_id", "sample_rate", "button_pressed", "left",
"right"} and answers {"score": 0..3}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				return fmt.Errorf("--url or BIMANUAL_SCORER_URL is required")
			}
			st, _, closeDB, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			n, err := st.Predict(cmd.Context(), args[0], predict.NewClient(url, nil))
			fmt.Fprintf(cmd.OutOrStdout(), "%d trials scored\n", n)
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", os.Getenv("BIMANUAL_SCORER_URL"), "Scoring endpoint")
	return cmd
}
