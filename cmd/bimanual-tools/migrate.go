package main

import (
	"fmt"
	"io/fs"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bimanual.report/internal/db"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect and move the database schema version",
		Long: `Inspect and move the database schema version.

The server and the other tools migrate up automatically; these commands
exist for rollbacks and for recovering a dirty database.`,
	}

	// withDB opens the database without migrating it.
	withDB := func(run func(cmd *cobra.Command, d *db.DB, migrations fs.FS, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			migrations, err := db.MigrationsFS()
			if err != nil {
				return err
			}
			d, err := db.OpenDB(opts.dbPath)
			if err != nil {
				return err
			}
			defer d.Close()
			return run(cmd, d, migrations, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show current and latest schema versions",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, migrations fs.FS, _ []string) error {
				st, err := d.Status(migrations)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "current: %d\nlatest:  %d\npending: %d\ndirty:   %v\n",
					st.CurrentVersion, st.LatestVersion, st.Pending, st.Dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, migrations fs.FS, _ []string) error {
				return d.MigrateUp(migrations)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, migrations fs.FS, _ []string) error {
				return d.MigrateDown(migrations)
			}),
		},
		&cobra.Command{
			Use:   "to <version>",
			Short: "Migrate up or down to a version",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, migrations fs.FS, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return d.MigrateTo(migrations, uint(v))
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Set the version and clear the dirty flag without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, d *db.DB, migrations fs.FS, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return d.MigrateForce(migrations, v)
			}),
		},
	)
	return cmd
}
