// Package cmd implements hacctl, which runs catalog tools directly against
// the backend using the same configuration as the server.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/DukeRupert/hacbridge/internal"
)

var rootCmd = &cobra.Command{
	Use:   "hacctl",
	Short: "Run commerce console and read API tools from the command line",
	Long: `hacctl reads the same environment (or .env file) as the bridge server
and calls the backend directly. Tool invocations are recorded in the audit
log when DATABASE_URL is set.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openBridge loads configuration and builds the shared components. Logs go
// to stderr so stdout stays machine-readable.
func openBridge(cmd *cobra.Command) (*internal.Bridge, error) {
	cfg, err := internal.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config initialization failed: %w", err)
	}
	logger := internal.NewLogger(cmd.ErrOrStderr(), cfg.Env, cfg.LogLevel)
	return internal.NewBridge(cmd.Context(), cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
