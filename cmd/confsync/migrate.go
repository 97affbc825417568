package main

import (
	"github.com/spf13/cobra"

	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/store"
)

func migrateCommand() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, roll back) the database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(true)
			if err != nil {
				return err
			}
			defer closeLog()

			if down {
				err = store.RollbackMigrations(cfg.DatabaseURL)
			} else {
				err = store.RunMigrations(cfg.DatabaseURL)
			}
			if err != nil {
				return err
			}

			version, dirty, ok, err := store.MigrationVersion(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if !ok {
				logging.Info().Msg("no migrations applied")
				return nil
			}
			logging.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations done")
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "Roll back every migration")
	return cmd
}
