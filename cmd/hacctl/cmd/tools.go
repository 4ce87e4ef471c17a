package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the published tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := openBridge(cmd)
		if err != nil {
			return err
		}
		defer bridge.Close()

		infos := bridge.Registry.List()
		if listJSON {
			return printJSON(cmd.OutOrStdout(), infos)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\n", info.Name, firstLine(info.Description))
		}
		return tw.Flush()
	},
}

var argsFile string

var callCmd = &cobra.Command{
	Use:   "call <tool> [json-args]",
	Short: "Invoke a tool and print its result",
	Long: `Invokes a tool with a JSON object as arguments. The arguments come from
the second positional argument, from --file, or from stdin when --file is "-".

Examples:
  hacctl call get_product '{"code":"300938"}'
  hacctl call flexible_search --file query.json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readArgs(cmd.InOrStdin(), args[1:], argsFile)
		if err != nil {
			return err
		}

		bridge, err := openBridge(cmd)
		if err != nil {
			return err
		}
		defer bridge.Close()

		result, err := bridge.Registry.Invoke(cmd.Context(), args[0], raw)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

var (
	invocationTool  string
	invocationLimit int
)

var invocationsCmd = &cobra.Command{
	Use:   "invocations",
	Short: "Show recent tool invocations from the audit log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := openBridge(cmd)
		if err != nil {
			return err
		}
		defer bridge.Close()

		if bridge.DB == nil {
			return fmt.Errorf("the audit log needs DATABASE_URL")
		}
		entries, err := bridge.Recorder.Recent(cmd.Context(), invocationTool, invocationLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), entries)
	},
}

// readArgs picks the argument document from the positional argument or a file.
func readArgs(stdin io.Reader, positional []string, file string) (json.RawMessage, error) {
	var raw []byte
	switch {
	case len(positional) > 0 && file != "":
		return nil, fmt.Errorf("pass arguments either inline or with --file, not both")
	case len(positional) > 0:
		raw = []byte(positional[0])
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("arguments are not valid JSON")
	}
	return raw, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().BoolVar(&listJSON, "json", false, "Print the catalog with input schemas as JSON")

	rootCmd.AddCommand(callCmd)
	callCmd.Flags().StringVarP(&argsFile, "file", "f", "", `Read arguments from a file ("-" for stdin)`)

	rootCmd.AddCommand(invocationsCmd)
	invocationsCmd.Flags().StringVar(&invocationTool, "tool", "", "Only show invocations of this tool")
	invocationsCmd.Flags().IntVarP(&invocationLimit, "limit", "n", 20, "Maximum number of entries")
}
