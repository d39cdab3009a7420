// Package commands implements the cartsmash command line.
package commands

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the cartsmash command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cartsmash",
		Short: "Resolve free-text grocery lists to catalog products",
		Long: `cartsmash parses shopping list lines and resolves them against the
retail catalog configured through CARTSMASH_* environment variables or config.yaml.`,
		SilenceUsage: true,
	}

	root.AddCommand(newParseCmd())
	root.AddCommand(newResolveCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
