package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/report"
	"github.com/banshee-data/bimanual.report/internal/security"
	"github.com/banshee-data/bimanual.report/internal/store"
	"github.com/banshee-data/bimanual.report/internal/units"
)

func newExportCmd(opts *options) *cobra.Command {
	var (
		outDir     string
		plotFormat string
		chart      bool
		uf         unitFlags
	)
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write the session workbook, and optionally per-trial plots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			sess, analyses, sum, err := st.Report(ctx, args[0])
			if err != nil {
				return err
			}
			base := fmt.Sprintf("%s-%s", sess.Participant, sess.CreatedAt.Format("2006-01-02"))

			path, err := security.OutputPath(outDir, base+".xlsx")
			if err != nil {
				return err
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			meta := report.SessionMeta{ID: sess.ID, Participant: sess.Participant, CreatedAt: sess.CreatedAt}
			if err := report.WriteWorkbook(f, meta, analyses, sum); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)

			if chart {
				path, err := security.OutputPath(outDir, base+"-summary.html")
				if err != nil {
					return err
				}
				if err := writeSummaryChart(path, sess.ID, sum); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}

			if plotFormat == "" {
				return nil
			}
			u, err := uf.parse()
			if err != nil {
				return err
			}
			trials, err := st.DB().TrialsForSession(ctx, sess.ID)
			if err != nil {
				return err
			}
			for _, t := range trials {
				path, err := plotTrial(ctx, st, t, outDir, fmt.Sprintf("%s-trial%02d.%s", base, t.Index, plotFormat), u)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVar(&plotFormat, "plots", "", "Also plot every trial: png, pdf or svg")
	cmd.Flags().BoolVar(&chart, "chart", false, "Also write the interactive summary chart")
	uf.register(cmd)
	return cmd
}

func newPlotCmd(opts *options) *cobra.Command {
	var (
		outDir string
		format string
		uf     unitFlags
	)
	cmd := &cobra.Command{
		Use:   "plot <trial-id>",
		Short: "Plot one trial's speed and height traces with its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, closeDB, err := opts.openStore()
			if err != nil {
				return err
			}
			defer closeDB()

			u, err := uf.parse()
			if err != nil {
				return err
			}
			t, err := st.DB().Trial(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path, err := plotTrial(cmd.Context(), st, t, outDir, t.ID+"."+format, u)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVarP(&format, "format", "f", "png", "png, pdf or svg")
	uf.register(cmd)
	return cmd
}

// plotTrial draws t with its stored analysis, analysing it first if no
// analysis is stored.
func plotTrial(ctx context.Context, st *store.Store, t db.StoredTrial, outDir, name string, u report.Units) (string, error) {
	path, err := security.OutputPath(outDir, name)
	if err != nil {
		return "", err
	}
	a, err := st.DB().Analysis(ctx, t.ID)
	if errors.Is(err, db.ErrNotFound) {
		a, err = st.Reanalyse(ctx, t.ID)
	}
	if err != nil {
		// Draw the traces without events rather than nothing.
		a = kinematics.Analysis{TrialID: t.ID}
	}
	if err := report.SaveTrialPlot(path, t.Trial, a, u); err != nil {
		return "", err
	}
	return path, nil
}

// unitFlags are the display unit flags of the plotting commands.
type unitFlags struct {
	speed, length string
}

func (f *unitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.speed, "speed-unit", units.MPS, "Plot speed in mps, cmps or mmps")
	cmd.Flags().StringVar(&f.length, "length-unit", units.CM, "Plot height in cm, m or mm")
}

func (f *unitFlags) parse() (report.Units, error) {
	return report.ParseUnits(f.speed, f.length)
}

func writeSummaryChart(path, sessionID string, sum kinematics.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.RenderSummaryChart(f, sessionID, sum); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
