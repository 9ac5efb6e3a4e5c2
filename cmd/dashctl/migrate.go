package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fastygo/dashboard/internal/config"
	pgInfra "github.com/fastygo/dashboard/internal/infrastructure/postgres"
)

func migrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	run := func(dir pgInfra.Direction) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if e.cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrations need the %s driver, got %q", config.DriverPostgres, e.cfg.Database.Driver)
			}
			if err := pgInfra.Migrate(e.cfg, dir, e.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", dir)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE:  run(pgInfra.Up),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE:  run(pgInfra.Down),
		},
	)

	return cmd
}
