package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <user-id>",
	Short: "Delete every session of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer rt.Close()

		n, err := rt.engine.RemoveAllUserAccess(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions\n", n)
		return nil
	},
}
