package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/hacbridge/internal/middleware"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the console and print the session status",
	Long: `Runs the console login once. Useful for checking credentials and the
console path before starting the server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := openBridge(cmd)
		if err != nil {
			return err
		}
		defer bridge.Close()

		if _, err := bridge.Auth.EnsureSession(cmd.Context()); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), bridge.Auth.Status())
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Print the bcrypt hash to use as API_TOKEN_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := middleware.HashToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(hashTokenCmd)
}
