package cmd

import (
	"github.com/spf13/cobra"

	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/user"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the users and auth_sessions tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openPostgres(cfg.Database.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		if err := user.NewPostgresStore(db).Migrate(ctx); err != nil {
			return err
		}
		logger.Info("users table ready")

		if err := session.NewPostgresBackend(db).Migrate(ctx); err != nil {
			return err
		}
		logger.Info("auth_sessions table ready")
		return nil
	},
}
