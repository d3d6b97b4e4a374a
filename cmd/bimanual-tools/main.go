// Command bimanual-tools works on a bimanual database offline: importing
// tracker captures, re-analysing and exporting sessions, fetching predicted
// scores and managing the schema.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/banshee-data/bimanual.report/internal/config"
	"github.com/banshee-data/bimanual.report/internal/db"
	"github.com/banshee-data/bimanual.report/internal/kinematics"
	"github.com/banshee-data/bimanual.report/internal/monitoring"
	"github.com/banshee-data/bimanual.report/internal/store"
	"github.com/banshee-data/bimanual.report/internal/version"
)

// options are the flags shared by every subcommand.
type options struct {
	dbPath     string
	configPath string
	debug      bool
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "bimanual-tools",
		Short:         "Offline tools for bimanual trial databases",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			monitoring.SetVerbose(opts.debug)
		},
	}

	dbDefault := os.Getenv("BIMANUAL_DB")
	if dbDefault == "" {
		dbDefault = "bimanual.db"
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", dbDefault, "SQLite database path")
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("BIMANUAL_CONFIG"), "Tuning config JSON (defaults are built in)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Verbose logging")

	root.AddCommand(
		newSessionsCmd(opts),
		newImportCmd(opts),
		newReprocessCmd(opts),
		newPredictCmd(opts),
		newExportCmd(opts),
		newPlotCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

func (o *options) tuning() (*config.TuningConfig, error) {
	if o.configPath == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(o.configPath)
}

// openStore opens the database, migrating it to the latest schema, and
// builds the analysis pipeline from the tuning config.
func (o *options) openStore() (*store.Store, *config.TuningConfig, func(), error) {
	tuning, err := o.tuning()
	if err != nil {
		return nil, nil, nil, err
	}
	th, err := kinematics.ThresholdsFromTuning(tuning)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := kinematics.NewPipeline(th, tuning.GetWorkers())
	if err != nil {
		return nil, nil, nil, err
	}
	database, err := db.NewDB(o.dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", o.dbPath, err)
	}
	return store.New(database, p), tuning, func() { database.Close() }, nil
}
