package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/sessionauth"
)

var (
	cfg        sessionauth.Config
	logger     *logrus.Logger
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "sessionauthd",
	Short: "Session authentication server",
	Long: `sessionauthd serves cookie-based session authentication and
role-hierarchy user administration over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = sessionauth.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = sessionauth.NewLogger(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("SESSIONAUTH_CONFIG"),
		"YAML config file (env: SESSIONAUTH_CONFIG)")

	rootCmd.AddCommand(serveCmd, migrateCmd, revokeCmd, loadtestCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
